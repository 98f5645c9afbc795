package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	mydb "github.com/TimurManjosov/loanrules/internal/db"
)

// Store types accepted by NewStore.
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// NewStore opens the store named by storeType. The memory store ignores dsn
// and loses its data on restart.
func NewStore(ctx context.Context, storeType, dsn string, log zerolog.Logger) (Store, error) {
	switch storeType {
	case TypeMemory:
		log.Warn().Msg("using in-memory store; programs and rules are lost on restart")
		return NewMemoryStore(), nil
	case TypePostgres:
		pool, err := mydb.NewPool(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return NewPostgresStore(pool, log.With().Str("store", TypePostgres).Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q (want %q or %q)", storeType, TypeMemory, TypePostgres)
	}
}
