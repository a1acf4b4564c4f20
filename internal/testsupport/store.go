package testsupport

import (
	"testing"

	"veritas/internal/cache"
	"veritas/internal/config"
)

// MustOpenStore opens the analysis store for cfg and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
