package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndList(t *testing.T) {
	rs, err := CompileRules(`target.name == "credit"`)
	require.NoError(t, err)
	reg := NewRegistry(rs)

	def, err := reg.Register(TargetDef{Name: "debit", Group: "ledger", Transactional: true})
	require.NoError(t, err)
	assert.True(t, def.Transactional)

	def, err = reg.Register(TargetDef{Name: "credit", Group: "ledger"})
	require.NoError(t, err)
	assert.True(t, def.Transactional)

	_, err = reg.Register(TargetDef{Name: "balance", Group: "ledger"})
	require.NoError(t, err)

	got, ok := reg.Get("balance")
	require.True(t, ok)
	assert.False(t, got.Transactional)

	names := make([]string, 0)
	for _, d := range reg.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"balance", "credit", "debit"}, names)
}

func TestRegistry_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Register(TargetDef{Name: "transfer"})
	require.NoError(t, err)

	_, err = reg.Register(TargetDef{Name: "transfer"})
	assert.ErrorIs(t, err, ErrDuplicateTarget)

	_, err = reg.Register(TargetDef{})
	assert.Error(t, err)
}
