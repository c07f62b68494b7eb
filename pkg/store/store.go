// Package store opens the recommendation store a Config selects while
// keeping backend implementations internal.
//
// Example:
//
//	s, err := store.Open(types.Config{
//	    Backend:  types.BackendSQLite,
//	    DataDir:  "/var/lib/holdwatch",
//	    FamilyID: "leo",
//	}, logger)
//	defer s.Close()
package store

import (
	"log/slog"

	"github.com/mesh-intelligence/holdwatch/internal/kvstore"
	"github.com/mesh-intelligence/holdwatch/internal/sqlite"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// Open validates cfg and opens the configured backend. Both backends also
// implement types.Replacer.
func Open(cfg types.Config, logger *slog.Logger) (types.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == types.BackendBadger {
		s, err := kvstore.Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	b, err := sqlite.Open(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
