// Package main seeds the ledger with demo accounts and runs concurrent
// transfers between them, one flow per transfer job.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"txchain/internal/app"
	"txchain/internal/core/apperror"
	"txchain/internal/core/flow"
	"txchain/internal/core/tx"
	"txchain/internal/domain/ledger"
	"txchain/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	log = log.WithComponent("seed")
	ctx := logger.WithLogger(context.Background(), log)

	ledgerApp, err := app.New(ctx, app.Config{
		Driver:      getEnv("DB_DRIVER", app.DriverSQLite),
		DatabaseURL: getEnv("DATABASE_URL", "file:data/txchain.db"),
		Rules:       os.Getenv("TX_RULES"),
	})
	if err != nil {
		log.Fatalw("failed to initialize ledger", "error", err)
	}
	defer ledgerApp.Close()

	accounts, err := seedAccounts(ctx, ledgerApp.Tx, ledgerApp.Ledger, getEnvInt("SEED_ACCOUNTS", 5))
	if err != nil {
		log.Fatalw("failed to seed accounts", "error", err)
	}
	log.Infow("accounts seeded", "count", len(accounts))

	if transfers := getEnvInt("SEED_TRANSFERS", 50); transfers > 0 {
		start := time.Now()
		stats, err := runTransfers(ctx, ledgerApp.Ledger, accounts, transfers, getEnvInt("SEED_WORKERS", 4))
		if err != nil {
			log.Fatalw("transfer run failed", "error", err)
		}
		log.Infow("transfers finished",
			"committed", stats.committed,
			"rejected", stats.rejected,
			"duration", time.Since(start),
		)
	}

	total, err := totalBalance(ctx, ledgerApp.Ledger, accounts)
	if err != nil {
		log.Fatalw("failed to read balances", "error", err)
	}
	log.Infow("seeding completed successfully", "total_balance", total.String())
}

// seedAccounts opens n demo accounts in one transaction: either all of them
// exist afterwards or none does.
func seedAccounts(ctx context.Context, txm tx.Manager, svc *ledger.Service, n int) ([]string, error) {
	var ids []string
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ids = make([]string, 0, n)
		for i := range n {
			acc, err := svc.Open(ctx, fmt.Sprintf("demo-%02d", i+1), decimal.NewFromInt(1000))
			if err != nil {
				return err
			}
			ids = append(ids, acc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type transferStats struct {
	committed int
	rejected  int
}

// runTransfers executes random transfers on a fixed number of workers.
// Business rejections (insufficient funds, version conflicts) are counted,
// anything else stops the run.
func runTransfers(ctx context.Context, svc *ledger.Service, accounts []string, n, workers int) (transferStats, error) {
	if len(accounts) < 2 {
		return transferStats{}, errors.New("need at least two accounts")
	}

	jobs := make(chan int)
	results := make(chan error, n)

	g, gctx := errgroup.WithContext(ctx)
	for range max(workers, 1) {
		g.Go(func() error {
			for range jobs {
				from := accounts[rand.IntN(len(accounts))]
				to := accounts[rand.IntN(len(accounts))]
				if from == to {
					continue
				}
				amount := decimal.NewFromInt(int64(rand.IntN(300) + 1))

				// Each job is a flow of its own.
				jobCtx, _ := flow.New(gctx)
				_, err := svc.Transfer(jobCtx, from, to, amount)
				if err != nil && !apperror.IsInsufficientFunds(err) && !apperror.IsConcurrentModification(err) {
					return err
				}
				results <- err
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range n {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	close(results)

	var stats transferStats
	for res := range results {
		if res == nil {
			stats.committed++
		} else {
			stats.rejected++
		}
	}
	return stats, err
}

func totalBalance(ctx context.Context, svc *ledger.Service, accounts []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, id := range accounts {
		acc, err := svc.Balance(ctx, id)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(acc.Balance)
	}
	return total, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
