package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/testutil"
)

func TestStoreContract(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T) store.Store { return New() })
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	s.FailFetch = boom
	if _, err := s.FetchPage(ctx, store.PageQuery{Limit: 1}); !errors.Is(err, boom) {
		t.Errorf("FetchPage() error = %v, want boom", err)
	}

	s.FailUpdate = func(id string) error {
		if id == "bad" {
			return boom
		}
		return nil
	}
	if err := s.UpsertEntries(ctx, []store.Entry{testutil.Entry("ok", "ok", "A", 1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateEntry(ctx, store.EntryUpdate{ID: "bad"}); !errors.Is(err, boom) {
		t.Errorf("UpdateEntry(bad) error = %v, want boom", err)
	}
	if err := s.UpdateEntry(ctx, store.EntryUpdate{ID: "ok", Code: "A.1"}); err != nil {
		t.Errorf("UpdateEntry(ok) error = %v", err)
	}
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.ReplaceActiveJob(ctx, testutil.Job("j", 5)); err != nil {
		t.Fatal(err)
	}
	j, _ := s.GetJob(ctx, "j")
	j.Processed = 99
	again, _ := s.GetJob(ctx, "j")
	if again.Processed != 0 {
		t.Errorf("mutating a returned job leaked into the store")
	}
}
