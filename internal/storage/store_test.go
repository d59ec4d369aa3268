package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "specfusion.db")
	st, err := Open(dbPath, &tokenizer.Tokenizer{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.UpsertSource(context.Background(), "wecom", "企业微信", "https://developer.work.weixin.qq.com"); err != nil {
		t.Fatalf("upsert source: %v", err)
	}
	return st
}

func TestDocumentIDDeterministic(t *testing.T) {
	a := DocumentID("wecom", "/cgi-bin/message/send")
	b := DocumentID("wecom", "/cgi-bin/message/send")
	if a != b {
		t.Fatalf("expected deterministic id, got %q vs %q", a, b)
	}
	if DocumentID("feishu", "/cgi-bin/message/send") == a {
		t.Fatal("expected different source_id to change the id")
	}
}

func TestUpsertDocumentCreateThenUnchanged(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	input := &models.DocumentInput{
		SourceID: "wecom",
		Path:     "/cgi-bin/message/send",
		Title:    "发送应用消息",
		DocType:  models.DocTypeAPIReference,
		Content:  "调用此接口发送应用消息",
	}

	id, action, err := st.UpsertDocument(ctx, input)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if action != models.ActionCreated {
		t.Fatalf("expected created, got %s", action)
	}

	id2, action2, err := st.UpsertDocument(ctx, input)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected stable id, got %q vs %q", id, id2)
	}
	if action2 != models.ActionUnchanged {
		t.Fatalf("expected unchanged, got %s", action2)
	}

	doc, err := st.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc == nil {
		t.Fatal("expected document, got nil")
	}
	if doc.PrevContentHash != "" {
		t.Fatalf("expected no prev_content_hash on first insert, got %q", doc.PrevContentHash)
	}
}

func TestUpsertDocumentUpdateSetsPrevHash(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	input := &models.DocumentInput{
		SourceID: "wecom",
		Path:     "/cgi-bin/message/send",
		Title:    "发送应用消息",
		DocType:  models.DocTypeAPIReference,
		Content:  "v1",
	}
	id, _, err := st.UpsertDocument(ctx, input)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	firstHash := ContentHash("v1")

	input.Content = "v2"
	_, action, err := st.UpsertDocument(ctx, input)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if action != models.ActionUpdated {
		t.Fatalf("expected updated, got %s", action)
	}

	doc, err := st.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.PrevContentHash != firstHash {
		t.Fatalf("expected prev_content_hash %q, got %q", firstHash, doc.PrevContentHash)
	}
	if doc.ContentHash != ContentHash("v2") {
		t.Fatalf("expected content_hash to match v2, got %q", doc.ContentHash)
	}
}

func TestBulkUpsertAtomicRollbackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	good := []*models.DocumentInput{
		{SourceID: "wecom", Path: "/a", Title: "a", DocType: models.DocTypeAPIReference, Content: "a"},
		{SourceID: "wecom", Path: "/b", Title: "b", DocType: models.DocTypeAPIReference, Content: "b"},
	}
	if _, err := st.BulkUpsert(ctx, "wecom", good); err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}

	bad := []*models.DocumentInput{
		{SourceID: "wecom", Path: "/c", Title: "c", DocType: models.DocTypeAPIReference, Content: "c"},
		{SourceID: "does-not-exist", Path: "/d", Title: "d", DocType: models.DocTypeAPIReference, Content: "d"},
	}
	if _, err := st.BulkUpsert(ctx, "wecom", bad); err == nil {
		t.Fatal("expected error from bulk upsert referencing a missing source")
	}

	docs, err := st.GetDocumentsBySource(ctx, "wecom")
	if err != nil {
		t.Fatalf("get documents by source: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected the failed batch to roll back entirely, got %d documents", len(docs))
	}
}

func TestBulkUpsertRecountsSourceDocCount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inputs := []*models.DocumentInput{
		{SourceID: "wecom", Path: "/a", Title: "a", DocType: models.DocTypeAPIReference, Content: "a"},
		{SourceID: "wecom", Path: "/b", Title: "b", DocType: models.DocTypeAPIReference, Content: "b"},
		{SourceID: "wecom", Path: "/c", Title: "c", DocType: models.DocTypeAPIReference, Content: "c"},
	}
	counts, err := st.BulkUpsert(ctx, "wecom", inputs)
	if err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}
	if counts.Created != 3 {
		t.Fatalf("expected 3 created, got %+v", counts)
	}

	sources, err := st.GetSources(ctx)
	if err != nil {
		t.Fatalf("get sources: %v", err)
	}
	if len(sources) != 1 || sources[0].DocCount != 3 {
		t.Fatalf("expected doc_count 3, got %+v", sources)
	}
}

func TestFTSRowidParityAfterReindex(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inputs := []*models.DocumentInput{
		{SourceID: "wecom", Path: "/a", Title: "发送消息", DocType: models.DocTypeAPIReference, Content: "access_token 调用接口"},
		{SourceID: "wecom", Path: "/b", Title: "撤回消息", DocType: models.DocTypeAPIReference, Content: "access_token 撤回"},
	}
	if _, err := st.BulkUpsert(ctx, "wecom", inputs); err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}

	count, err := st.Reindex(ctx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 documents counted, got %d", count)
	}

	var ftsCount int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM documents_fts`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts rows: %v", err)
	}
	if ftsCount != 2 {
		t.Fatalf("expected FTS index to contain exactly one row per document, got %d", ftsCount)
	}
}

func TestDeleteDocumentRemovesFTSRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
		SourceID: "wecom", Path: "/a", Title: "t", DocType: models.DocTypeAPIReference, Content: "c",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var ftsCount int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM documents_fts`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts rows: %v", err)
	}
	if ftsCount != 0 {
		t.Fatalf("expected FTS row removed after delete, got %d", ftsCount)
	}
}

func TestErrorCodeUpsertAndFind(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	codes := []*models.ErrorCode{
		{SourceID: "wecom", Code: "60011", Message: "no privilege", Description: "the member has no privilege"},
	}
	if err := st.UpsertErrorCodes(ctx, "wecom", codes); err != nil {
		t.Fatalf("upsert error codes: %v", err)
	}

	ec, err := st.FindErrorCode(ctx, "60011")
	if err != nil {
		t.Fatalf("find error code: %v", err)
	}
	if ec == nil || ec.Message != "no privilege" {
		t.Fatalf("expected error code 60011 found, got %+v", ec)
	}

	codes[0].Message = "updated message"
	if err := st.UpsertErrorCodes(ctx, "wecom", codes); err != nil {
		t.Fatalf("re-upsert error codes: %v", err)
	}
	ec, err = st.FindErrorCode(ctx, "60011")
	if err != nil {
		t.Fatalf("find error code after update: %v", err)
	}
	if ec.Message != "updated message" {
		t.Fatalf("expected updated message, got %q", ec.Message)
	}
}

func TestSyncLogLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateSyncLog(ctx, "wecom")
	if err != nil {
		t.Fatalf("create sync log: %v", err)
	}
	counts := models.SyncCounts{Created: 1, Updated: 2, Unchanged: 3}
	if err := st.UpdateSyncLog(ctx, id, models.SyncSuccess, counts, ""); err != nil {
		t.Fatalf("update sync log: %v", err)
	}
}

func TestLogSearchAcceptsZeroResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.LogSearch(ctx, "no such query", "wecom", 0, 0, 5); err != nil {
		t.Fatalf("log search: %v", err)
	}
}
