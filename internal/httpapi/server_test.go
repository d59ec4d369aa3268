package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/search"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	tok := &tokenizer.Tokenizer{}
	dbPath := filepath.Join(t.TempDir(), "specfusion.db")
	st, err := storage.Open(dbPath, tok)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	engine := search.NewEngine(st, tok, zap.NewNop())
	srv := NewServer(engine, st, adapter.NewSourceRegistry(), testAdminToken, zap.NewNop())
	return srv, st
}

func seedDoc(t *testing.T, st *storage.Store, sourceID, path, title, content string) string {
	t.Helper()
	ctx := context.Background()
	if err := st.UpsertSource(ctx, sourceID, sourceID, ""); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	id, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
		SourceID: sourceID, Path: path, Title: title, DocType: models.DocTypeGuide, Content: content,
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return id
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearchReturnsMarkdown(t *testing.T) {
	srv, st := newTestServer(t)
	seedDoc(t, st, "wecom", "cat/d1", "发送应用消息", "调用此接口向成员发送应用消息")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=发送应用消息", nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("expected markdown content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "发送应用消息") {
		t.Fatalf("expected result in body, got %q", w.Body.String())
	}
}

func TestHandleGetDocNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/doc/missing", nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleGetDocFullAndSummary(t *testing.T) {
	srv, st := newTestServer(t)
	id := seedDoc(t, st, "wecom", "cat/d1", "发送应用消息", "# 发送应用消息\n\n调用此接口向成员发送应用消息。")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/doc/"+id, nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!-- source: wecom -->") {
		t.Fatalf("expected metadata comment, got %q", w.Body.String())
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/doc/"+id+"?summary=true", nil)
	srv.Router().ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), id) {
		t.Fatalf("expected summary to reference doc id, got %q", w2.Body.String())
	}
}

func TestAdminEndpointsRequireBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHandleBulkUpsertAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(models.BulkUpsertRequest{
		Source:     "feishu",
		SourceName: "飞书",
		Documents: []models.DocumentPayload{
			{Path: "a/b", Title: "Doc A", DocType: models.DocTypeGuide, Content: "content a"},
			{Path: "a/c", Title: "Doc B", DocType: models.DocTypeGuide, Content: "content b"},
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/bulk-upsert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.BulkUpsertResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", resp)
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	srv.Router().ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	var health models.HealthResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.TotalDocs != 2 {
		t.Fatalf("expected 2 total docs, got %+v", health)
	}
}

func TestHandleCategoriesAndRecent(t *testing.T) {
	srv, st := newTestServer(t)
	seedDoc(t, st, "feishu", "guide/intro", "Intro", "intro content")
	seedDoc(t, st, "feishu", "guide/setup", "Setup", "setup content")
	seedDoc(t, st, "feishu", "reference/api", "API", "api content")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/categories?source=feishu", nil)
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "guide") || !strings.Contains(w.Body.String(), "reference") {
		t.Fatalf("expected both categories listed, got %q", w.Body.String())
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/categories/feishu/guide", nil)
	srv.Router().ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), "Intro") || !strings.Contains(w2.Body.String(), "Setup") {
		t.Fatalf("expected guide docs listed, got %q", w2.Body.String())
	}
	if strings.Contains(w2.Body.String(), "### API") {
		t.Fatalf("expected reference doc excluded, got %q", w2.Body.String())
	}

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/api/recent?source=feishu&days=30", nil)
	srv.Router().ServeHTTP(w3, req3)
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w3.Code)
	}
	if !strings.Contains(w3.Body.String(), "Intro") {
		t.Fatalf("expected recent docs listed, got %q", w3.Body.String())
	}
}
