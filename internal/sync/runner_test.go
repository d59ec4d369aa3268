package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

// fakeAdapter emits n synthetic entries and fails content fetch for any
// path ending in "-fail".
type fakeAdapter struct {
	id, name string
	n        int
	failures map[string]bool
}

func (f *fakeAdapter) SourceID() string   { return f.id }
func (f *fakeAdapter) SourceName() string { return f.name }

func (f *fakeAdapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	entries := make([]adapter.DocEntry, 0, f.n)
	for i := 0; i < f.n; i++ {
		path := fmt.Sprintf("doc-%d", i)
		if f.failures[path] {
			path += "-fail"
		}
		entries = append(entries, adapter.DocEntry{
			Path:       path,
			Title:      fmt.Sprintf("Doc %d", i),
			DocType:    models.DocTypeGuide,
			PlatformID: path,
		})
	}
	return entries, nil
}

func (f *fakeAdapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	if len(entry.Path) > 5 && entry.Path[len(entry.Path)-5:] == "-fail" {
		return adapter.DocContent{}, fmt.Errorf("synthetic failure for %s", entry.Path)
	}
	return adapter.DocContent{Markdown: "# " + entry.Title}, nil
}

func (f *fakeAdapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return f.FetchCatalog(ctx)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "specfusion.db")
	st, err := storage.Open(dbPath, &tokenizer.Tokenizer{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// newBulkUpsertServer returns a test server that applies incoming batches
// directly to st, mirroring the real /api/admin/bulk-upsert handler.
func newBulkUpsertServer(t *testing.T, st *storage.Store, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		var req models.BulkUpsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inputs := make([]*models.DocumentInput, len(req.Documents))
		for i, d := range req.Documents {
			in := d.ToInput(req.Source)
			inputs[i] = &in
		}
		if err := st.UpsertSource(r.Context(), req.Source, req.SourceName, ""); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		counts, err := st.BulkUpsert(r.Context(), req.Source, inputs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(models.BulkUpsertResponse{
			Created: counts.Created, Updated: counts.Updated, Unchanged: counts.Unchanged,
		})
	}))
}

func TestRunSourceBatchesAndUpsertsAllEntries(t *testing.T) {
	st := newTestStore(t)
	var requests int32
	srv := newBulkUpsertServer(t, st, &requests)
	defer srv.Close()

	registry := adapter.NewSourceRegistry()
	registry.Register(&fakeAdapter{id: "fake", name: "Fake Source", n: 120})

	runner := NewRunner(st, registry, srv.URL, "test-token", nil)
	res, err := runner.RunSource(context.Background(), "fake", Options{})
	if err != nil {
		t.Fatalf("run source: %v", err)
	}
	if res.Counts.Created != 120 {
		t.Fatalf("expected 120 created, got %+v", res.Counts)
	}
	// 120 entries at batch size 50 means 3 flushes (50, 50, 20).
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Fatalf("expected 3 bulk-upsert requests, got %d", got)
	}

	src, err := st.GetSource(context.Background(), "fake")
	if err != nil || src == nil {
		t.Fatalf("expected source row, err=%v src=%v", err, src)
	}
	if src.DocCount != 120 {
		t.Fatalf("expected doc_count 120, got %d", src.DocCount)
	}
}

func TestRunSourceCountsContentFetchErrors(t *testing.T) {
	st := newTestStore(t)
	var requests int32
	srv := newBulkUpsertServer(t, st, &requests)
	defer srv.Close()

	registry := adapter.NewSourceRegistry()
	registry.Register(&fakeAdapter{
		id: "fake", name: "Fake Source", n: 5,
		failures: map[string]bool{"doc-2": true},
	})

	runner := NewRunner(st, registry, srv.URL, "test-token", nil)
	res, err := runner.RunSource(context.Background(), "fake", Options{})
	if err != nil {
		t.Fatalf("run source: %v", err)
	}
	if res.Counts.Errors != 1 {
		t.Fatalf("expected 1 error, got %+v", res.Counts)
	}
	if res.Counts.Created != 4 {
		t.Fatalf("expected 4 created, got %+v", res.Counts)
	}
}

func TestRunSourceAbortsOnQualityGateFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.UpsertSource(ctx, "fake", "Fake Source", ""); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	for i := 0; i < 100; i++ {
		_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
			SourceID: "fake", Path: fmt.Sprintf("seed-%d", i), Title: "Seed", DocType: models.DocTypeGuide, Content: "x",
		})
		if err != nil {
			t.Fatalf("seed doc %d: %v", i, err)
		}
	}

	var requests int32
	srv := newBulkUpsertServer(t, st, &requests)
	defer srv.Close()

	registry := adapter.NewSourceRegistry()
	registry.Register(&fakeAdapter{id: "fake", name: "Fake Source", n: 10}) // 10 < 80% of 100

	runner := NewRunner(st, registry, srv.URL, "test-token", nil)
	res, err := runner.RunSource(ctx, "fake", Options{})
	if err != nil {
		t.Fatalf("run source: %v", err)
	}
	if !res.Aborted {
		t.Fatal("expected quality gate abort")
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Fatalf("expected no bulk-upsert requests after abort, got %d", requests)
	}

	docs, err := st.GetDocumentsBySource(ctx, "fake")
	if err != nil {
		t.Fatalf("get documents: %v", err)
	}
	if len(docs) != 100 {
		t.Fatalf("expected all 100 prior documents preserved, got %d", len(docs))
	}
}

func TestRunSourceRespectsLimit(t *testing.T) {
	st := newTestStore(t)
	var requests int32
	srv := newBulkUpsertServer(t, st, &requests)
	defer srv.Close()

	registry := adapter.NewSourceRegistry()
	registry.Register(&fakeAdapter{id: "fake", name: "Fake Source", n: 200})

	runner := NewRunner(st, registry, srv.URL, "test-token", nil)
	res, err := runner.RunSource(context.Background(), "fake", Options{Limit: 7})
	if err != nil {
		t.Fatalf("run source: %v", err)
	}
	if res.Counts.Created != 7 {
		t.Fatalf("expected limit of 7 entries honored, got %+v", res.Counts)
	}
}

func TestRunSourceUnknownSourceErrors(t *testing.T) {
	st := newTestStore(t)
	runner := NewRunner(st, adapter.NewSourceRegistry(), "http://unused", "token", nil)
	if _, err := runner.RunSource(context.Background(), "missing", Options{}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
