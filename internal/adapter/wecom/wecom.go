// Package wecom implements the WeCom (企业微信) documentation adapter,
// the hardest adapter profile: a category tree walk, captcha/429-aware
// content fetching, and cookie-based interactive login.
package wecom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/browser"
	"github.com/specfusion/specfusion/internal/ratelimit"
	pkgmd "github.com/specfusion/specfusion/pkg/markdown"
)

const (
	sourceID      = "wecom"
	sourceName    = "企业微信"
	healthCheckID = "90001" // a known, stable doc id used to probe cookie validity
	baseURL       = "https://developer.work.weixin.qq.com"
)

// Adapter implements adapter.Adapter for WeCom's developer documentation.
type Adapter struct {
	client    *http.Client
	stepper   *ratelimit.WecomStepper
	converter *pkgmd.Converter
	driver    browser.Driver
	log       *zap.Logger

	cookiesEnv  string
	cookiesPath string
	cookies     map[string]string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBrowser injects the headful login driver used when cookies are
// missing or stale.
func WithBrowser(d browser.Driver) Option {
	return func(a *Adapter) { a.driver = d }
}

// WithLogger attaches structured logging.
func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// New constructs the WeCom adapter. cookiesEnv is an environment variable
// holding a serialized cookie jar; cookiesPath is a JSON file fallback.
func New(cookiesEnv, cookiesPath string, opts ...Option) *Adapter {
	a := &Adapter{
		client:      &http.Client{Timeout: 20 * time.Second},
		stepper:     ratelimit.NewWecomStepper(),
		converter:   pkgmd.NewConverter(),
		log:         zap.NewNop(),
		cookiesEnv:  cookiesEnv,
		cookiesPath: cookiesPath,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SourceID() string   { return sourceID }
func (a *Adapter) SourceName() string { return sourceName }

// ensureCookies loads credentials from the environment variable and/or the
// JSON file, falling back to an interactive headful login on failure, per
// its "Cookie management".
func (a *Adapter) ensureCookies(ctx context.Context) error {
	if a.cookies == nil {
		a.cookies = loadCookies(a.cookiesEnv, a.cookiesPath)
	}
	if err := a.healthCheck(ctx); err == nil {
		return nil
	}

	if a.driver == nil {
		return fmt.Errorf("wecom cookies invalid and no browser driver configured for interactive login")
	}
	cookies, err := a.interactiveLogin(ctx)
	if err != nil {
		return fmt.Errorf("interactive login: %w", err)
	}
	a.cookies = cookies
	if a.cookiesPath != "" {
		a.persistCookies()
	}
	return a.healthCheck(ctx)
}

func loadCookies(envVar, path string) map[string]string {
	cookies := map[string]string{}
	if envVar != "" {
		if raw := os.Getenv(envVar); raw != "" {
			_ = json.Unmarshal([]byte(raw), &cookies)
		}
	}
	if len(cookies) == 0 && path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			_ = json.Unmarshal(raw, &cookies)
		}
	}
	return cookies
}

func (a *Adapter) persistCookies() {
	data, err := json.Marshal(a.cookies)
	if err != nil {
		a.log.Warn("failed to marshal wecom cookies", zap.Error(err))
		return
	}
	if err := os.WriteFile(a.cookiesPath, data, 0600); err != nil {
		a.log.Warn("failed to persist wecom cookies", zap.Error(err))
	}
}

// healthCheck calls a known doc id; any non-success response is treated as
// an invalid session, triggering interactive login.
func (a *Adapter) healthCheck(ctx context.Context) error {
	_, err := a.fetchDocPage(ctx, healthCheckID)
	return err
}

func (a *Adapter) interactiveLogin(ctx context.Context) (map[string]string, error) {
	if err := a.driver.NewPage(ctx); err != nil {
		return nil, err
	}
	defer a.driver.Close()

	if err := a.driver.Goto(ctx, baseURL+"/document/path/90001"); err != nil {
		return nil, err
	}
	if err := a.driver.WaitFor(ctx, "body"); err != nil {
		return nil, err
	}
	return a.driver.Cookies(ctx)
}

func (a *Adapter) cookieHeader() string {
	parts := make([]string, 0, len(a.cookies))
	for k, v := range a.cookies {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "; ")
}

// DetectUpdates delegates to FetchCatalog; the SyncRunner short-circuits
// unchanged content by hash comparison, default implementation.
func (a *Adapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return a.FetchCatalog(ctx)
}
