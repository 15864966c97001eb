package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/testutil"
)

func openSQLiteStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "semtag.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteContract(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T) store.Store { return openSQLiteStore(t) })
}

func TestPostgresContract(t *testing.T) {
	dsn := testutil.PostgresDSN(t)
	testutil.RunStoreContract(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), Config{Driver: DriverPostgres, DSN: dsn, MaxConns: 4})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		ctx := context.Background()
		for _, table := range []string{"jobs", "entries", "documents", "taxonomy", "llm_calls"} {
			if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("failed to clear %s: %v", table, err)
			}
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "semtag.db")

	s, err := Open(ctx, Config{DSN: path})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReplaceActiveJob(ctx, testutil.Job("persist", 3)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, Config{DSN: path})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	j, err := s.GetJob(ctx, "persist")
	if err != nil {
		t.Fatalf("GetJob() after reopen error = %v", err)
	}
	if j.TotalWords != 3 {
		t.Errorf("TotalWords = %d, want 3", j.TotalWords)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("Open() expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind() = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() sqlite = %q", got)
	}
}

func TestTimeLayoutSorts(t *testing.T) {
	a := formatTime(testutil.Epoch)
	b := formatTime(testutil.Epoch.Add(1500))
	if !(a < b) {
		t.Errorf("formatTime ordering %q >= %q", a, b)
	}
	got, err := parseTime(b)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(testutil.Epoch.Add(1500)) {
		t.Errorf("parseTime() = %v", got)
	}
	if _, err := parseTime("2024-03-01T12:00:00Z"); err != nil {
		t.Errorf("parseTime(RFC3339) error = %v", err)
	}
}
