package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackzampolin/semtag/internal/store"
)

// RunStoreContract exercises behavior every store.Store must share.
// open must return an empty store.
func RunStoreContract(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("replace active job", func(t *testing.T) {
		s := open(t)
		done := Job("done", 10)
		done.Status = store.StatusCompleted
		if _, err := s.ReplaceActiveJob(ctx, done); err != nil {
			t.Fatalf("ReplaceActiveJob() error = %v", err)
		}
		old := Job("old", 10)
		old.CreatedAt = Epoch.Add(time.Second)
		cancelled, err := s.ReplaceActiveJob(ctx, old)
		if err != nil {
			t.Fatalf("ReplaceActiveJob() error = %v", err)
		}
		if len(cancelled) != 0 {
			t.Errorf("cancelled = %v, want none", cancelled)
		}

		fresh := Job("new", 10)
		fresh.CreatedAt = Epoch.Add(time.Minute)
		cancelled, err = s.ReplaceActiveJob(ctx, fresh)
		if err != nil {
			t.Fatalf("ReplaceActiveJob() error = %v", err)
		}
		if len(cancelled) != 1 || cancelled[0] != "old" {
			t.Errorf("cancelled = %v, want [old]", cancelled)
		}

		running, err := s.ListJobs(ctx, store.JobFilter{Status: store.StatusRunning})
		if err != nil {
			t.Fatal(err)
		}
		if len(running) != 1 || running[0].ID != "new" {
			t.Errorf("running jobs = %v, want only new", jobIDs(running))
		}
		got, err := s.GetJob(ctx, "old")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != store.StatusCancelled || !got.IsCancelling {
			t.Errorf("old = %s cancelling=%v, want cancelled", got.Status, got.IsCancelling)
		}
		got, err = s.GetJob(ctx, "done")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != store.StatusCompleted {
			t.Errorf("completed job status = %s, want unchanged", got.Status)
		}
	})

	t.Run("list jobs newest first", func(t *testing.T) {
		s := open(t)
		for i := 0; i < 3; i++ {
			j := Job(fmt.Sprintf("j%d", i), 1)
			j.CreatedAt = Epoch.Add(time.Duration(i) * time.Hour)
			if _, err := s.ReplaceActiveJob(ctx, j); err != nil {
				t.Fatal(err)
			}
		}
		jobs, err := s.ListJobs(ctx, store.JobFilter{Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if got := jobIDs(jobs); len(got) != 2 || got[0] != "j2" || got[1] != "j1" {
			t.Errorf("ListJobs() = %v, want [j2 j1]", got)
		}
	})

	t.Run("get missing job", func(t *testing.T) {
		s := open(t)
		if _, err := s.GetJob(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetJob() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("job round trip", func(t *testing.T) {
		s := open(t)
		j := Job("rt", 42)
		j.DomainFilter = "A.1"
		j.SampleRefinements = []store.Sample{{SurfaceForm: "dog", OldCode: "A", NewCode: "A.1.1.1", Depth: 4, Confidence: 0.9}}
		if _, err := s.ReplaceActiveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetJob(ctx, "rt")
		if err != nil {
			t.Fatal(err)
		}
		if got.TotalWords != 42 || got.DomainFilter != "A.1" || got.Model != j.Model {
			t.Errorf("GetJob() = %+v", got)
		}
		if len(got.SampleRefinements) != 1 || got.SampleRefinements[0].NewCode != "A.1.1.1" {
			t.Errorf("samples = %+v", got.SampleRefinements)
		}
		if !got.CreatedAt.Equal(Epoch) || got.StartedAt == nil || !got.StartedAt.Equal(Epoch) {
			t.Errorf("timestamps = %v %v", got.CreatedAt, got.StartedAt)
		}
		if got.CompletedAt != nil {
			t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
		}
	})

	t.Run("update status compare and set", func(t *testing.T) {
		s := open(t)
		if _, err := s.ReplaceActiveJob(ctx, Job("cas", 10)); err != nil {
			t.Fatal(err)
		}

		msg := "boom"
		at := Epoch.Add(time.Hour)
		j, err := s.UpdateStatus(ctx, "cas", store.StatusUpdate{
			From: []store.JobStatus{store.StatusRunning}, To: store.StatusPaused, LastError: &msg, Touch: true, At: at,
		})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if j.Status != store.StatusPaused || j.LastError != "boom" || j.LastChunkAt == nil || !j.LastChunkAt.Equal(at) {
			t.Errorf("UpdateStatus() = %+v", j)
		}

		_, err = s.UpdateStatus(ctx, "cas", store.StatusUpdate{
			From: []store.JobStatus{store.StatusRunning}, To: store.StatusCompleted, Complete: true, At: at,
		})
		if !errors.Is(err, store.ErrConflict) {
			t.Errorf("UpdateStatus() from wrong status error = %v, want ErrConflict", err)
		}

		_, err = s.UpdateStatus(ctx, "missing", store.StatusUpdate{
			From: []store.JobStatus{store.StatusRunning}, To: store.StatusPaused,
		})
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("UpdateStatus() missing error = %v, want ErrNotFound", err)
		}

		empty := ""
		j, err = s.UpdateStatus(ctx, "cas", store.StatusUpdate{
			From: []store.JobStatus{store.StatusPaused}, To: store.StatusRunning, LastError: &empty,
		})
		if err != nil {
			t.Fatal(err)
		}
		if j.LastError != "" || j.Status != store.StatusRunning {
			t.Errorf("resume = %+v", j)
		}
	})

	t.Run("save progress compare and set", func(t *testing.T) {
		s := open(t)
		if _, err := s.ReplaceActiveJob(ctx, Job("p", 100)); err != nil {
			t.Fatal(err)
		}
		j, _ := s.GetJob(ctx, "p")
		j.Processed, j.Refined, j.Errors, j.CurrentOffset = 50, 10, 2, 50
		j.N2Refined, j.N3Refined, j.N4Refined = 10, 4, 1
		if err := s.SaveProgress(ctx, j, 0); err != nil {
			t.Fatalf("SaveProgress() error = %v", err)
		}

		stale := j.Clone()
		stale.CurrentOffset = 50
		if err := s.SaveProgress(ctx, stale, 0); !errors.Is(err, store.ErrConflict) {
			t.Errorf("SaveProgress() stale error = %v, want ErrConflict", err)
		}

		got, _ := s.GetJob(ctx, "p")
		if got.Processed != 50 || got.Refined != 10 || got.Errors != 2 || got.CurrentOffset != 50 ||
			got.N2Refined != 10 || got.N3Refined != 4 || got.N4Refined != 1 {
			t.Errorf("progress = %+v", got)
		}
		if got.Status != store.StatusRunning {
			t.Errorf("status = %s, progress must not change status", got.Status)
		}
	})

	t.Run("fetch page window and order", func(t *testing.T) {
		s := open(t)
		entries := []store.Entry{
			Entry("e1", "bank", "B", 5),
			Entry("e2", "apple", "A", 9),
			Entry("e3", "cat", "A", 9),
			Entry("e4", "dog", "A.1", 20),
			Entry("e5", "paris", "C", 1),
			Entry("e6", "zebra", "", 3),
		}
		other := Entry("e7", "otter", "A.1.1", 30)
		other.RefineJobID = "other-job"
		mine := Entry("e8", "terrier", "A.1.1.1", 2)
		mine.RefineJobID = "job"
		entries = append(entries, other, mine)
		if err := s.UpsertEntries(ctx, entries); err != nil {
			t.Fatal(err)
		}

		n, err := s.CountCoarse(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if n != 5 {
			t.Errorf("CountCoarse(\"\") = %d, want 5", n)
		}
		if n, _ := s.CountCoarse(ctx, "A.1"); n != 2 {
			t.Errorf("CountCoarse(A.1) = %d, want 2", n)
		}

		page, err := s.FetchPage(ctx, store.PageQuery{JobID: "job", Mode: store.PriorityImpact, Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if got := entryIDs(page); fmt.Sprint(got) != "[e2 e3 e1 e6 e8 e5]" {
			t.Errorf("impact page = %v", got)
		}

		page, _ = s.FetchPage(ctx, store.PageQuery{JobID: "job", Mode: store.PriorityAlphabetical, Offset: 1, Limit: 2})
		if got := entryIDs(page); fmt.Sprint(got) != "[e1 e3]" {
			t.Errorf("alphabetical page = %v", got)
		}

		page, _ = s.FetchPage(ctx, store.PageQuery{JobID: "job", Domain: "A", Mode: store.PriorityImpact, Limit: 10})
		if got := entryIDs(page); fmt.Sprint(got) != "[e2 e3 e8]" {
			t.Errorf("domain page = %v", got)
		}

		page, _ = s.FetchPage(ctx, store.PageQuery{JobID: "job", Mode: store.PriorityImpact, Offset: 10, Limit: 10})
		if len(page) != 0 {
			t.Errorf("page past end = %v", entryIDs(page))
		}
	})

	t.Run("random order uses cache time", func(t *testing.T) {
		s := open(t)
		a := Entry("r1", "a", "A", 1)
		b := Entry("r2", "b", "A", 1)
		b.CachedAt = Epoch.Add(time.Minute)
		if err := s.UpsertEntries(ctx, []store.Entry{a, b}); err != nil {
			t.Fatal(err)
		}
		page, _ := s.FetchPage(ctx, store.PageQuery{Mode: store.PriorityRandom, Limit: 5})
		if got := entryIDs(page); fmt.Sprint(got) != "[r2 r1]" {
			t.Errorf("random page = %v", got)
		}
	})

	t.Run("update entry", func(t *testing.T) {
		s := open(t)
		if err := s.UpsertEntries(ctx, []store.Entry{Entry("u1", "dog", "A", 1)}); err != nil {
			t.Fatal(err)
		}
		err := s.UpdateEntry(ctx, store.EntryUpdate{
			ID: "u1", Code: "A.1.1", Levels: [4]string{"A", "A.1", "A.1.1", ""},
			Confidence: 0.9, Provenance: "semtag:m", JobID: "job",
		})
		if err != nil {
			t.Fatal(err)
		}
		e, err := s.GetEntry(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if e.Code != "A.1.1" || e.N2 != "A.1" || e.N3 != "A.1.1" || e.N4 != "" ||
			e.Confidence != 0.9 || e.Provenance != "semtag:m" || e.RefineJobID != "job" {
			t.Errorf("entry = %+v", e)
		}
		if err := s.UpdateEntry(ctx, store.EntryUpdate{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("UpdateEntry() missing error = %v", err)
		}
	})

	t.Run("documents", func(t *testing.T) {
		s := open(t)
		docs := []store.Document{{ID: "d1", Body: "hello"}, {ID: "d2", Body: "<p>x</p>", ContentType: "text/html"}}
		if err := s.UpsertDocuments(ctx, docs); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetDocuments(ctx, []string{"d2", "d3"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got["d2"].ContentType != "text/html" {
			t.Errorf("GetDocuments() = %+v", got)
		}
	})

	t.Run("taxonomy active only", func(t *testing.T) {
		s := open(t)
		if err := s.UpsertTaxonomy(ctx, Taxonomy()); err != nil {
			t.Fatal(err)
		}
		got, err := s.ActiveTaxonomy(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(Taxonomy())-1 {
			t.Errorf("ActiveTaxonomy() len = %d", len(got))
		}
		for _, e := range got {
			if e.Code == "B.9" {
				t.Errorf("inactive code returned")
			}
			if e.Code == "A.1" && len(e.Examples) != 2 {
				t.Errorf("examples = %v", e.Examples)
			}
		}
	})

	t.Run("calls newest first", func(t *testing.T) {
		s := open(t)
		calls := []store.LLMCall{
			{ID: "01A", JobID: "j", Timestamp: Epoch, Success: true},
			{ID: "01B", JobID: "k", Timestamp: Epoch.Add(time.Second)},
			{ID: "01C", JobID: "j", Timestamp: Epoch.Add(2 * time.Second), Error: "x"},
		}
		if err := s.InsertCalls(ctx, calls); err != nil {
			t.Fatal(err)
		}
		got, err := s.ListCalls(ctx, store.CallFilter{JobID: "j"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].ID != "01C" || got[1].ID != "01A" || !got[1].Success {
			t.Errorf("ListCalls() = %+v", got)
		}
	})
}

func jobIDs(jobs []*store.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func entryIDs(entries []store.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
