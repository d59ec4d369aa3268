package browser

import (
	"context"
	"testing"
)

type fakeDriver struct {
	visited []string
	cookies map[string]string
}

func (f *fakeDriver) NewPage(ctx context.Context) error { return nil }
func (f *fakeDriver) Goto(ctx context.Context, url string) error {
	f.visited = append(f.visited, url)
	return nil
}
func (f *fakeDriver) WaitFor(ctx context.Context, selector string) error { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error  { return nil }
func (f *fakeDriver) Evaluate(ctx context.Context, script string, out interface{}) error {
	return nil
}
func (f *fakeDriver) Cookies(ctx context.Context) (map[string]string, error) {
	return f.cookies, nil
}
func (f *fakeDriver) Close() error { return nil }

func TestFakeDriverSatisfiesDriver(t *testing.T) {
	var d Driver = &fakeDriver{cookies: map[string]string{"session": "abc"}}
	ctx := context.Background()

	if err := d.Goto(ctx, "https://developer.work.weixin.qq.com/"); err != nil {
		t.Fatalf("goto: %v", err)
	}
	cookies, err := d.Cookies(ctx)
	if err != nil {
		t.Fatalf("cookies: %v", err)
	}
	if cookies["session"] != "abc" {
		t.Errorf("expected session cookie, got %v", cookies)
	}
}
