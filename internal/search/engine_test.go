package search

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "specfusion.db")
	tok := &tokenizer.Tokenizer{}
	st, err := storage.Open(dbPath, tok)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.UpsertSource(context.Background(), "wecom", "企业微信", ""); err != nil {
		t.Fatalf("upsert source: %v", err)
	}

	return NewEngine(st, tok, zap.NewNop()), st
}

func TestClassifyQueryKinds(t *testing.T) {
	cases := map[string]models.QueryKind{
		"60011":                   models.QueryErrCode,
		"errcode 60011":           models.QueryErrCode,
		"ErrCode 60011":           models.QueryErrCode,
		"/cgi-bin/message/send":   models.QueryAPIPath,
		"开放平台/open-apis/im/v1": models.QueryAPIPath,
		"发送应用消息":                models.QueryKeyword,
	}
	for q, want := range cases {
		if got := Classify(q); got != want {
			t.Errorf("Classify(%q) = %s, want %s", q, got, want)
		}
	}
}

func TestSearchKeywordFindsUpsertedDocument(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
		SourceID: "wecom",
		Path:     "/cgi-bin/message/send",
		Title:    "发送应用消息",
		APIPath:  "/cgi-bin/message/send",
		DocType:  models.DocTypeAPIReference,
		Content:  "调用此接口可以发送应用消息给指定成员",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resp, err := eng.Search(ctx, &models.SearchQuery{Query: "发送应用消息"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	if resp.Results[0].Document.Title != "发送应用消息" {
		t.Errorf("unexpected top result: %+v", resp.Results[0].Document)
	}
}

func TestSearchAPIPathMatchesLike(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
		SourceID: "wecom",
		Path:     "/cgi-bin/message/send",
		Title:    "发送应用消息",
		APIPath:  "/cgi-bin/message/send",
		DocType:  models.DocTypeAPIReference,
		Content:  "content",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resp, err := eng.Search(ctx, &models.SearchQuery{Query: "/cgi-bin/message/send"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.Score != flatMatchScore {
			t.Errorf("expected flat score %v, got %v", flatMatchScore, r.Score)
		}
	}
}

func TestSearchErrorCodeFallsBackToContentScan(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
		SourceID: "wecom",
		Path:     "/errors",
		Title:    "错误码说明",
		DocType:  models.DocTypeErrorCode,
		Content:  "| 60011 | no privilege | the member has no privilege |",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resp, err := eng.Search(ctx, &models.SearchQuery{Query: "60011"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(resp.Results))
	}
}

func TestSearchKeywordEmptyTokensReturnsEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)
	resp, err := eng.Search(context.Background(), &models.SearchQuery{Query: "的了是"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected zero results for stopword-only query, got %d", len(resp.Results))
	}
}

func TestDedupeGroupsByTitleAndAPIPath(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	for _, mode := range []models.DevMode{models.DevModeInternal, models.DevModeThirdParty} {
		_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
			SourceID: "wecom",
			Path:     "/cgi-bin/message/send/" + string(mode),
			Title:    "发送应用消息",
			APIPath:  "/cgi-bin/message/send",
			DevMode:  mode,
			DocType:  models.DocTypeAPIReference,
			Content:  "发送应用消息内容",
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", mode, err)
		}
	}

	resp, err := eng.Search(ctx, &models.SearchQuery{Query: "发送应用消息"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected dedup to collapse to one result, got %d", len(resp.Results))
	}
	if len(resp.Results[0].OtherModes) != 1 {
		t.Errorf("expected one other_mode recorded, got %v", resp.Results[0].OtherModes)
	}
}

func TestDedupeSkippedWhenModeFilterSet(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	for _, mode := range []models.DevMode{models.DevModeInternal, models.DevModeThirdParty} {
		_, _, err := st.UpsertDocument(ctx, &models.DocumentInput{
			SourceID: "wecom",
			Path:     "/cgi-bin/message/send/" + string(mode),
			Title:    "发送应用消息",
			APIPath:  "/cgi-bin/message/send",
			DevMode:  mode,
			DocType:  models.DocTypeAPIReference,
			Content:  "发送应用消息内容",
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", mode, err)
		}
	}

	resp, err := eng.Search(ctx, &models.SearchQuery{Query: "发送应用消息", DevMode: models.DevModeInternal})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected exactly one result with mode filter, got %d", len(resp.Results))
	}
}

func TestFormatMarkdownZeroResults(t *testing.T) {
	resp := &models.SearchResponse{Query: "不存在的东西", Kind: models.QueryKeyword}
	out := FormatMarkdown(resp, func(string) string { return "全部" })
	if !contains(out, "未找到匹配结果") {
		t.Errorf("expected zero-result diagnostic, got %q", out)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
