// Package sync implements the SyncRunner: the state machine driving
// one source from catalog fetch through quality gate, bounded-concurrency
// content fetch, batched bulk-upsert over HTTP, and sync_log bookkeeping.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/storage"
)

const (
	// contentWorkers bounds concurrent FetchContent calls per source run.
	contentWorkers = 6
	// batchSize is the bulk-upsert flush threshold.
	batchSize = 50
	// incrementalWindow is how far back DetectUpdates looks.
	incrementalWindow = 7 * 24 * time.Hour
)

// Options controls one RunSource/RunAll invocation.
type Options struct {
	Incremental bool
	Limit       int // 0 means unlimited; used by --limit for debug runs
}

// Result is the outcome of syncing one source.
type Result struct {
	SourceID string
	Counts   models.SyncCounts
	Aborted  bool
	Message  string
}

// Runner drives registered adapters through the sync state machine. It
// writes sync_log/error_codes/source rows directly against the store, but
// document content is always submitted through the HTTP admin API so the
// CLI invocation and the serving process stay decoupled.
type Runner struct {
	store      *storage.Store
	registry   *adapter.SourceRegistry
	apiURL     string
	adminToken string
	client     *http.Client
	log        *zap.Logger
}

// NewRunner constructs a Runner. apiURL is the base URL of a running
// specfusion-server instance (e.g. http://localhost:3456).
func NewRunner(store *storage.Store, registry *adapter.SourceRegistry, apiURL, adminToken string, log *zap.Logger) *Runner {
	return &Runner{
		store:      store,
		registry:   registry,
		apiURL:     strings.TrimRight(apiURL, "/"),
		adminToken: adminToken,
		client:     &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// RunAll syncs every registered source, in a deterministic (sorted by
// source id) order, stopping at the first catalog-fetch error.
func (r *Runner) RunAll(ctx context.Context, opts Options) ([]Result, error) {
	ids := r.registry.IDs()
	sort.Strings(ids)

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		res, err := r.RunSource(ctx, id, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunSource drives the state machine for one source:
// START -> CATALOG_FETCH -> QUALITY_GATE -> [fail] ABORT (no deletions) /
// [pass] CONTENT_FETCH -> BATCH_UPSERT -> FINISH -> UPDATE_SYNC_LOG.
func (r *Runner) RunSource(ctx context.Context, sourceID string, opts Options) (Result, error) {
	a := r.registry.Get(sourceID)
	if a == nil {
		return Result{SourceID: sourceID}, fmt.Errorf("sync: unknown source %q", sourceID)
	}

	if err := r.store.UpsertSource(ctx, a.SourceID(), a.SourceName(), ""); err != nil {
		return Result{SourceID: sourceID}, fmt.Errorf("sync: upsert source row: %w", err)
	}

	logID, err := r.store.CreateSyncLog(ctx, sourceID)
	if err != nil {
		return Result{SourceID: sourceID}, fmt.Errorf("sync: create sync log: %w", err)
	}

	lastCount := r.previousDocCount(ctx, sourceID)

	entries, err := r.fetchCatalog(ctx, a, opts)
	if err != nil {
		_ = r.store.UpdateSyncLog(ctx, logID, models.SyncFailed, models.SyncCounts{}, err.Error())
		return Result{SourceID: sourceID}, fmt.Errorf("sync: catalog fetch: %w", err)
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	gate := adapter.CheckQualityGate(len(entries), lastCount)
	if !gate.Pass {
		// Quality gate failure aborts before any document is touched, so
		// the prior run's documents (and thus no deletions) survive.
		_ = r.store.UpdateSyncLog(ctx, logID, models.SyncFailed, models.SyncCounts{}, gate.Message)
		if r.log != nil {
			r.log.Error("quality gate failed, aborting sync", zap.String("source", sourceID), zap.String("message", gate.Message))
		}
		return Result{SourceID: sourceID, Aborted: true, Message: gate.Message}, nil
	}
	if gate.Warn && r.log != nil {
		r.log.Warn("quality gate warning", zap.String("source", sourceID), zap.String("message", gate.Message))
	}

	counts := r.runContentFetch(ctx, a, entries)

	status := models.SyncSuccess
	errText := ""
	if len(entries) > 0 && counts.Created+counts.Updated+counts.Unchanged == 0 {
		status = models.SyncFailed
		errText = fmt.Sprintf("all %d entries failed", counts.Errors)
	}
	if err := r.store.UpdateSyncLog(ctx, logID, status, counts, errText); err != nil && r.log != nil {
		r.log.Warn("failed to update sync log", zap.Error(err))
	}
	if err := r.store.UpdateSourceSyncTime(ctx, sourceID); err != nil && r.log != nil {
		r.log.Warn("failed to update source sync time", zap.Error(err))
	}

	return Result{SourceID: sourceID, Counts: counts, Message: gate.Message}, nil
}

func (r *Runner) previousDocCount(ctx context.Context, sourceID string) int {
	src, err := r.store.GetSource(ctx, sourceID)
	if err != nil || src == nil {
		return 0
	}
	return src.DocCount
}

func (r *Runner) fetchCatalog(ctx context.Context, a adapter.Adapter, opts Options) ([]adapter.DocEntry, error) {
	if opts.Incremental {
		return a.DetectUpdates(ctx, time.Now().Add(-incrementalWindow))
	}
	return a.FetchCatalog(ctx)
}

// runContentFetch submits entries to a bounded pool of contentWorkers,
// buffers successful fetches into batches of batchSize, flushes each batch
// via the admin bulk-upsert endpoint, and reports progress every
// max(100, total/10) processed entries.
func (r *Runner) runContentFetch(ctx context.Context, a adapter.Adapter, entries []adapter.DocEntry) models.SyncCounts {
	total := len(entries)
	progressEvery := total / 10
	if progressEvery < 100 {
		progressEvery = 100
	}

	var (
		mu        sync.Mutex
		batch     []models.DocumentPayload
		counts    models.SyncCounts
		processed int64
	)

	flush := func() {
		mu.Lock()
		pending := batch
		batch = nil
		mu.Unlock()
		if len(pending) == 0 {
			return
		}

		resp, err := r.postBulkUpsert(ctx, a.SourceID(), a.SourceName(), pending)
		mu.Lock()
		if err != nil {
			counts.Errors += len(pending)
			if r.log != nil {
				r.log.Warn("bulk upsert batch failed, continuing", zap.String("source", a.SourceID()), zap.Int("batch_size", len(pending)), zap.Error(err))
			}
		} else {
			counts.Created += resp.Created
			counts.Updated += resp.Updated
			counts.Unchanged += resp.Unchanged
		}
		mu.Unlock()
	}

	entryCh := make(chan adapter.DocEntry)
	var wg sync.WaitGroup
	for i := 0; i < contentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range entryCh {
				r.fetchOne(ctx, a, entry, &mu, &batch, &counts)

				n := atomic.AddInt64(&processed, 1)
				if n%int64(progressEvery) == 0 && r.log != nil {
					r.log.Info("sync progress", zap.String("source", a.SourceID()), zap.Int64("processed", n), zap.Int("total", total))
				}

				mu.Lock()
				full := len(batch) >= batchSize
				mu.Unlock()
				if full {
					flush()
				}
			}
		}()
	}

feed:
	for _, entry := range entries {
		select {
		case entryCh <- entry:
		case <-ctx.Done():
			break feed
		}
	}
	close(entryCh)
	wg.Wait()
	flush()

	return counts
}

// fetchOne fetches one entry's content, persists any error codes directly
// (their doc id is derivable without waiting on the bulk-upsert round
// trip), and appends the resulting payload to the shared batch.
func (r *Runner) fetchOne(ctx context.Context, a adapter.Adapter, entry adapter.DocEntry, mu *sync.Mutex, batch *[]models.DocumentPayload, counts *models.SyncCounts) {
	content, err := a.FetchContent(ctx, entry)
	if err != nil {
		mu.Lock()
		counts.Errors++
		mu.Unlock()
		if r.log != nil {
			r.log.Warn("fetch content failed", zap.String("source", a.SourceID()), zap.String("path", entry.Path), zap.Error(err))
		}
		return
	}

	if len(content.ErrorCodes) > 0 {
		docID := storage.DocumentID(a.SourceID(), entry.Path)
		codes := make([]*models.ErrorCode, len(content.ErrorCodes))
		for i, ec := range content.ErrorCodes {
			ec.SourceID = a.SourceID()
			ec.DocID = docID
			codes[i] = &ec
		}
		if err := r.store.UpsertErrorCodes(ctx, a.SourceID(), codes); err != nil && r.log != nil {
			r.log.Warn("upsert error codes failed", zap.String("source", a.SourceID()), zap.Error(err))
		}
	}

	payload := buildPayload(entry, content)
	mu.Lock()
	*batch = append(*batch, payload)
	mu.Unlock()
}

func buildPayload(entry adapter.DocEntry, content adapter.DocContent) models.DocumentPayload {
	apiPath := entry.APIPath
	if content.APIPath != "" {
		apiPath = content.APIPath
	}
	return models.DocumentPayload{
		Path:        entry.Path,
		Title:       entry.Title,
		APIPath:     apiPath,
		DevMode:     entry.DevMode,
		DocType:     entry.DocType,
		Content:     content.Markdown,
		SourceURL:   entry.SourceURL,
		Metadata:    content.Metadata,
		LastUpdated: entry.LastUpdated,
	}
}

func (r *Runner) postBulkUpsert(ctx context.Context, sourceID, sourceName string, docs []models.DocumentPayload) (models.BulkUpsertResponse, error) {
	reqBody := models.BulkUpsertRequest{Source: sourceID, SourceName: sourceName, Documents: docs}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return models.BulkUpsertResponse{}, fmt.Errorf("encode bulk upsert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL+"/api/admin/bulk-upsert", bytes.NewReader(body))
	if err != nil {
		return models.BulkUpsertResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.adminToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return models.BulkUpsertResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return models.BulkUpsertResponse{}, fmt.Errorf("bulk upsert http %d: %s", resp.StatusCode, string(respBody))
	}

	var out models.BulkUpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.BulkUpsertResponse{}, fmt.Errorf("decode bulk upsert response: %w", err)
	}
	return out, nil
}
