package dingtalk

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/specfusion/specfusion/internal/adapter"
)

type fakeDriver struct {
	navigations []string
	evalResult  string
}

func (f *fakeDriver) NewPage(ctx context.Context) error { return nil }
func (f *fakeDriver) Goto(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}
func (f *fakeDriver) WaitFor(ctx context.Context, selector string) error { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error  { return nil }
func (f *fakeDriver) Evaluate(ctx context.Context, script string, out interface{}) error {
	return json.Unmarshal([]byte(f.evalResult), out)
}
func (f *fakeDriver) Cookies(ctx context.Context) (map[string]string, error) { return nil, nil }
func (f *fakeDriver) Close() error                                          { return nil }

func TestFetchCatalogCollectsAndDeduplicatesLinks(t *testing.T) {
	driver := &fakeDriver{
		evalResult: `[
			{"href":"https://open.dingtalk.com/document/orgapp-server/api-one","title":"API One"},
			{"href":"https://open.dingtalk.com/document/orgapp-server/api-one","title":"API One Again"},
			{"href":"https://open.dingtalk.com/document/orgapp-server/","title":""}
		]`,
	}
	a := New(driver)
	entries, err := a.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after dropping the duplicate, got %d: %+v", len(entries), entries)
	}
	if entries[0].Path != "document/orgapp-server/api-one" {
		t.Errorf("path = %q", entries[0].Path)
	}
}

func TestFetchContentExtractsAPIPath(t *testing.T) {
	driver := &fakeDriver{evalResult: `"<h1>Create Order</h1><p>Call /v2.0/orders to create an order.</p>"`}
	a := New(driver)

	entry := adapter.DocEntry{
		Path:       "document/orgapp-server/api-one",
		PlatformID: "https://open.dingtalk.com/document/orgapp-server/api-one",
	}
	content, err := a.FetchContent(context.Background(), entry)
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if content.APIPath != "/v2.0/orders" {
		t.Errorf("APIPath = %q, want /v2.0/orders", content.APIPath)
	}
}
