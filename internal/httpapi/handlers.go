package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/search"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/summarize"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		respondMarkdown(w, http.StatusBadRequest, "缺少必填参数 `q`。\n")
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	sq := &models.SearchQuery{
		Query:   query,
		Source:  q.Get("source"),
		DevMode: models.DevMode(q.Get("dev_mode")),
		Limit:   limit,
	}

	resp, err := s.engine.Search(r.Context(), sq)
	if err != nil {
		s.log.Error("search failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "搜索失败："+err.Error()+"\n")
		return
	}

	label := s.sourceLabelFunc(r.Context())
	respondMarkdown(w, http.StatusOK, search.FormatMarkdown(resp, label))
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.log.Error("get document failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "获取文档失败："+err.Error()+"\n")
		return
	}
	if doc == nil {
		respondMarkdown(w, http.StatusNotFound, fmt.Sprintf("未找到文档：`%s`\n", id))
		return
	}

	full := renderDocument(doc)
	if truthy(r.URL.Query().Get("summary")) {
		respondMarkdown(w, http.StatusOK, summarize.Summarize(full, doc.ID, doc.SourceID))
		return
	}
	respondMarkdown(w, http.StatusOK, full)
}

// renderDocument prepends the metadata HTML comments summarize.go's
// extraction patterns look for, then the document's own title/content.
func renderDocument(doc *models.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- source: %s -->\n", doc.SourceID)
	fmt.Fprintf(&b, "<!-- path: %s -->\n", doc.Path)
	if doc.SourceURL != "" {
		fmt.Fprintf(&b, "<!-- source_url: %s -->\n", doc.SourceURL)
	}
	if !doc.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "<!-- last_updated: %s -->\n", doc.LastUpdated.Format("2006-01-02"))
	}
	b.WriteString("\n")
	b.WriteString(doc.Content)
	return b.String()
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.GetSources(r.Context())
	if err != nil {
		s.log.Error("list sources failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "获取来源列表失败："+err.Error()+"\n")
		return
	}

	var b strings.Builder
	b.WriteString("## 可用来源\n\n")
	b.WriteString("| ID | 名称 | 文档数 | 最后同步 |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, src := range sources {
		synced := "从未"
		if !src.LastSyncedAt.IsZero() {
			synced = src.LastSyncedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", src.ID, src.Name, src.DocCount, synced)
	}
	respondMarkdown(w, http.StatusOK, b.String())
}

// sourceLabelFunc preloads every source's display name so FormatMarkdown's
// sourceLabel callback can run without its own context.
func (s *Server) sourceLabelFunc(ctx context.Context) func(id string) string {
	sources, err := s.store.GetSources(ctx)
	names := make(map[string]string, len(sources))
	if err == nil {
		for _, src := range sources {
			names[src.ID] = src.Name
		}
	}
	return func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	counts, err := listCategories(r.Context(), s.store, source)
	if err != nil {
		s.log.Error("list categories failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "获取分类失败："+err.Error()+"\n")
		return
	}

	var b strings.Builder
	b.WriteString("## 文档分类\n\n")
	b.WriteString("| 来源 | 分类 | 文档数 |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, c := range counts {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", c.SourceID, c.Category, c.Count)
	}
	respondMarkdown(w, http.StatusOK, b.String())
}

func (s *Server) handleCategoryDocs(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	category := chi.URLParam(r, "category")
	limit := models.ClampLimit(atoiOr(r.URL.Query().Get("limit"), 0), 50, 1, 100)
	detail := r.URL.Query().Get("mode") == "detail"

	docs, err := s.store.GetDocumentsBySource(r.Context(), source)
	if err != nil {
		s.log.Error("list category documents failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "获取分类文档失败："+err.Error()+"\n")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s / %s\n\n", source, category)
	n := 0
	for _, doc := range docs {
		if pathCategory(doc.Path) != category {
			continue
		}
		if n >= limit {
			break
		}
		n++
		fmt.Fprintf(&b, "### %s\n\n文档 ID：`%s`", doc.Title, doc.ID)
		if doc.APIPath != "" {
			fmt.Fprintf(&b, " · 接口：`%s`", doc.APIPath)
		}
		b.WriteString("\n\n")
		if detail {
			b.WriteString(summarize.Summarize(doc.Content, doc.ID, doc.SourceID))
			b.WriteString("\n\n")
		}
	}
	if n == 0 {
		b.WriteString("此分类下暂无文档。\n")
	}
	respondMarkdown(w, http.StatusOK, b.String())
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("source")
	days := models.ClampLimit(atoiOr(q.Get("days"), 0), 7, 1, 90)
	limit := models.ClampLimit(atoiOr(q.Get("limit"), 0), 20, 1, 100)

	since := time.Now().AddDate(0, 0, -days)
	docs, err := recentDocuments(r.Context(), s.store, source, since, limit)
	if err != nil {
		s.log.Error("list recent documents failed", zap.Error(err))
		respondMarkdown(w, http.StatusInternalServerError, "获取最近文档失败："+err.Error()+"\n")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## 最近 %d 天更新的文档\n\n", days)
	if len(docs) == 0 {
		b.WriteString("暂无更新。\n")
		respondMarkdown(w, http.StatusOK, b.String())
		return
	}
	for _, doc := range docs {
		fmt.Fprintf(&b, "- **%s**（%s）文档 ID：`%s`", doc.Title, doc.SourceID, doc.ID)
		if !doc.LastUpdated.IsZero() {
			fmt.Fprintf(&b, " · 更新于 %s", doc.LastUpdated.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	respondMarkdown(w, http.StatusOK, b.String())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.GetSources(r.Context())
	if err != nil {
		s.log.Error("health check failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	total := 0
	out := make([]models.HealthSource, 0, len(sources))
	for _, src := range sources {
		total += src.DocCount
		out = append(out, models.HealthSource{
			ID: src.ID, Name: src.Name, DocCount: src.DocCount, LastSynced: src.LastSyncedAt,
		})
	}
	respondJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Sources: out, TotalDocs: total})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Source == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
		return
	}

	if err := s.store.UpsertSource(r.Context(), req.Source, req.SourceName, ""); err != nil {
		s.log.Error("upsert source failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	input := req.Document.ToInput(req.Source)
	docID, action, err := s.store.UpsertDocument(r.Context(), &input)
	if err != nil {
		s.log.Error("upsert document failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.UpsertResponse{DocID: docID, Action: action})
}

func (s *Server) handleBulkUpsert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBulkUpsertBytes)

	var req models.BulkUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Source == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
		return
	}

	if err := s.store.UpsertSource(r.Context(), req.Source, req.SourceName, ""); err != nil {
		s.log.Error("upsert source failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	inputs := make([]*models.DocumentInput, len(req.Documents))
	for i, d := range req.Documents {
		in := d.ToInput(req.Source)
		inputs[i] = &in
	}

	counts, err := s.store.BulkUpsert(r.Context(), req.Source, inputs)
	if err != nil {
		s.log.Error("bulk upsert failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.BulkUpsertResponse{
		Created: counts.Created, Updated: counts.Updated, Unchanged: counts.Unchanged,
	})
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.log.Error("delete document failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: true})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Reindex(r.Context())
	if err != nil {
		s.log.Error("reindex failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.ReindexResponse{Reindexed: n})
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func pathCategory(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}

type categoryCount struct {
	SourceID string
	Category string
	Count    int
}

// listCategories groups documents by (source_id, first path segment),
// optionally filtered to one source.
func listCategories(ctx context.Context, store *storage.Store, source string) ([]categoryCount, error) {
	query := `SELECT source_id, path FROM documents`
	args := []interface{}{}
	if source != "" {
		query += ` WHERE source_id = ?`
		args = append(args, source)
	}

	rows, err := store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct{ source, category string }
	counts := map[key]int{}
	for rows.Next() {
		var sourceID, path string
		if err := rows.Scan(&sourceID, &path); err != nil {
			return nil, err
		}
		counts[key{sourceID, pathCategory(path)}]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]categoryCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, categoryCount{SourceID: k.source, Category: k.category, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// recentDocuments returns documents synced since `since`, newest first,
// optionally filtered to one source.
func recentDocuments(ctx context.Context, store *storage.Store, source string, since time.Time, limit int) ([]*models.Document, error) {
	query := `SELECT id, source_id, path, path_depth, title, COALESCE(api_path, ''), COALESCE(dev_mode, ''),
		doc_type, content, content_hash, COALESCE(prev_content_hash, ''), COALESCE(source_url, ''),
		COALESCE(metadata, ''), tokenized_title, tokenized_content, COALESCE(last_updated, ''), synced_at
		FROM documents WHERE synced_at >= ?`
	args := []interface{}{since.UTC()}
	if source != "" {
		query += ` AND source_id = ?`
		args = append(args, source)
	}
	query += ` ORDER BY synced_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var doc models.Document
		var devMode, lastUpdatedStr, synced string
		if err := rows.Scan(
			&doc.ID, &doc.SourceID, &doc.Path, &doc.PathDepth, &doc.Title, &doc.APIPath, &devMode,
			&doc.DocType, &doc.Content, &doc.ContentHash, &doc.PrevContentHash, &doc.SourceURL,
			&doc.Metadata, &doc.TokenizedTitle, &doc.TokenizedContent, &lastUpdatedStr, &synced,
		); err != nil {
			return nil, err
		}
		doc.DevMode = models.DevMode(devMode)
		if lastUpdatedStr != "" {
			doc.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdatedStr)
		}
		doc.SyncedAt, _ = time.Parse(time.RFC3339, synced)
		out = append(out, &doc)
	}
	return out, rows.Err()
}
