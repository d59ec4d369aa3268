package wecom

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
)

func TestSlugifyNormalizesAndFallsBack(t *testing.T) {
	cases := map[string]string{
		"Getting Started":  "getting-started",
		"消息推送":             "消息推送",
		"  Leading/Spaces ": "leading-spaces",
		"***":               "cat",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDevModeFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want models.DevMode
	}{
		{"/document/path/90001/is_third/1", models.DevModeThirdParty},
		{"/document/path/90001/is_sp/1", models.DevModeServiceProvider},
		{"/document/path/90001", models.DevModeInternal},
	}
	for _, c := range cases {
		if got := devModeFromURL(c.url); got != c.want {
			t.Errorf("devModeFromURL(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestBuildCategoryTreeFiltersAndSorts(t *testing.T) {
	raws := []rawCategory{
		{ID: "1", Name: "B", Status: 2, OrderID: 2},
		{ID: "2", Name: "A", Status: 2, OrderID: 1},
		{ID: "3", Name: "hidden", Status: 1, OrderID: 0},
		{ID: "4", ParentID: "1", Name: "child", Status: 2, OrderID: 0},
	}
	roots := buildCategoryTree(raws)
	if len(roots) != 2 {
		t.Fatalf("expected 2 published roots, got %d", len(roots))
	}
	if roots[0].Name != "A" || roots[1].Name != "B" {
		t.Errorf("expected order_id sort A,B, got %s,%s", roots[0].Name, roots[1].Name)
	}
	if len(roots[1].Children) != 1 || roots[1].Children[0].Name != "child" {
		t.Errorf("expected category 1 to have child attached, got %+v", roots[1].Children)
	}
}

func TestWalkCategoriesProducesSlugChainPaths(t *testing.T) {
	roots := []*categoryNode{
		{
			rawCategory: rawCategory{ID: "1", Name: "入门指南"},
			Docs: []rawDocRef{
				{DocID: "d1", Title: "Doc One", URL: "/document/path/d1"},
			},
		},
	}

	var entries []adapter.DocEntry
	walkCategories(roots, nil, map[string]int{}, &entries)

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := "001-入门指南/d1"
	if entries[0].Path != want {
		t.Errorf("path = %q, want %q", entries[0].Path, want)
	}
	if entries[0].SourceURL != baseURL+"/document/path/d1" {
		t.Errorf("unexpected source url %q", entries[0].SourceURL)
	}
}

func TestWalkCategoriesAppendsCollisionSuffix(t *testing.T) {
	roots := []*categoryNode{
		{rawCategory: rawCategory{ID: "1", Name: "指南"}},
		{rawCategory: rawCategory{ID: "2", Name: "指南"}},
	}
	var entries []adapter.DocEntry
	walkCategories(roots, nil, map[string]int{}, &entries)

	if !hasSlugCollision(roots[0], roots) {
		t.Error("expected duplicate category names to be flagged as colliding")
	}
}

func TestIsCaptchaResponseDetectsMarkers(t *testing.T) {
	var captcha fetchContentResult
	captcha.Result.ErrCode = wecomCaptchaErrCode
	if !isCaptchaResponse(captcha, "{}") {
		t.Error("expected errCode 500003 detected as captcha")
	}

	var clean fetchContentResult
	if isCaptchaResponse(clean, `{"content":"ok"}`) {
		t.Error("expected clean response not flagged")
	}
	if !isCaptchaResponse(clean, `{"showDeveloperCaptcha":true}`) {
		t.Error("expected marker string detected as captcha")
	}
}

func TestExtractLastUpdatedPrefersMostRecent(t *testing.T) {
	var result fetchContentResult
	result.Result.Extra.UpdateTime = "2024-01-01"
	html := `<div>最后更新：2024-06-15</div>`

	got := extractLastUpdated(html, result)
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("extractLastUpdated = %v, want %v", got, want)
	}
}

func TestExtractLastUpdatedEmptyWhenNoneParse(t *testing.T) {
	var result fetchContentResult
	got := extractLastUpdated("<div>no dates here</div>", result)
	if !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

func TestLoadCookiesPrefersEnvOverFile(t *testing.T) {
	t.Setenv("WECOM_TEST_COOKIES", `{"a":"1"}`)
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(`{"a":"2"}`), 0600); err != nil {
		t.Fatalf("write cookie file: %v", err)
	}
	got := loadCookies("WECOM_TEST_COOKIES", path)
	if got["a"] != "1" {
		t.Errorf("expected cookie from env var, got %+v", got)
	}
}
