package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// testConfig returns a valid configuration with cheap password hashing.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.JWTSecret = strings.Repeat("ab", 32)
	return &cfg
}

// newTestDB opens a database in a fresh temporary directory.
func newTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	dir := t.TempDir()
	return openTestDB(t, dir), dir
}

func openTestDB(t *testing.T, dir string) *DB {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	db, err := OpenDB(context.Background(), dir, testConfig(), m)
	if err != nil {
		t.Fatal(err)
	}
	return db
}
