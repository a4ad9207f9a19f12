package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txchain/internal/core/apperror"
	"txchain/internal/infrastructure/http/v1/dto"
	"txchain/internal/metadata"
)

// MetadataHandler exposes registered targets and their transactional marker.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{BaseHandler: base, registry: registry}
}

// ListTargets returns all registered targets sorted by name.
// GET /api/v1/meta/targets
func (h *MetadataHandler) ListTargets(c *gin.Context) {
	h.OK(c, dto.NewListResponse(h.registry.List()))
}

// GetTarget returns one target definition.
// GET /api/v1/meta/targets/:name
func (h *MetadataHandler) GetTarget(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("target", name))
		return
	}
	c.JSON(http.StatusOK, def)
}
