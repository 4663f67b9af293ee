package boleto

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

// Repository reads due boletos and writes their per-kind markers.
type Repository interface {
	// FindDue returns open boletos due on dueDate whose patient has a
	// non-empty phone, in stable selection order.
	FindDue(ctx context.Context, dueDate time.Time, kind Kind) ([]Obligation, error)
	// MarkNotified sets the kind marker to at on every listed boleto, leaving
	// markers already dated on at's calendar day untouched.
	MarkNotified(ctx context.Context, kind Kind, ids []string, at time.Time) error
}

// NewRepository opens the configured store and prepares it for use.
func NewRepository(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := config.NewPostgresDB(lc, cfg, log)
		if err != nil {
			return nil, err
		}
		repo := NewPostgresRepository(db)
		if cfg.Store.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
			log.Info("postgres schema applied")
		}
		return repo, nil
	case config.DriverMongo:
		client, err := config.NewMongoDBClient(lc, cfg, log)
		if err != nil {
			return nil, err
		}
		repo := NewMongoRepository(client.Database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, &config.ConfigurationError{Field: "STORE_DRIVER", Reason: fmt.Sprintf("unknown driver %q", cfg.Store.Driver)}
	}
}
