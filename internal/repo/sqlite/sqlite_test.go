package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hamed0406/uptimesli/internal/repo"
	"github.com/hamed0406/uptimesli/internal/repo/repotest"
)

func TestSQLiteStore_Conformance(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Store {
		s, err := New(context.Background(), filepath.Join(t.TempDir(), "uptime.db"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}
