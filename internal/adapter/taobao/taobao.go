// Package taobao implements the Taobao (淘宝) open platform documentation
// adapter, the platform most likely to challenge a scraper: every response
// is screened for anti-bot markers, and its session token is refreshed on
// a fixed cadence and on detected invalidation.
package taobao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/ratelimit"
	pkgmd "github.com/specfusion/specfusion/pkg/markdown"
)

const (
	sourceID   = "taobao"
	sourceName = "淘宝开放平台"
	baseURL    = "https://open.taobao.com"

	sessionTTL       = 15 * time.Minute
	antiBotBaseBackoff = 5 * time.Minute
	maxAntiBotRetries  = 2
)

// SessionRefresher obtains a fresh session token, e.g. by replaying a
// stored login flow or re-reading a cookie file. Adapters embed it rather
// than hard-coding a login transport so tests can inject a fake.
type SessionRefresher interface {
	Refresh(ctx context.Context) (token string, err error)
}

// Adapter implements adapter.Adapter for Taobao's session-gated API.
type Adapter struct {
	client    *http.Client
	limiter   *ratelimit.TaobaoLimiter
	refresher SessionRefresher
	converter *pkgmd.Converter

	mu          sync.Mutex
	token       string
	tokenIssued time.Time
	antiBotHits int
}

// New constructs the Taobao adapter. seed varies the rate limiter's jitter
// sequence across runs without depending on wall-clock time.
func New(refresher SessionRefresher, seed int64) *Adapter {
	return &Adapter{
		client:    &http.Client{Timeout: 20 * time.Second},
		limiter:   ratelimit.NewTaobaoLimiter(seed),
		refresher: refresher,
		converter: pkgmd.NewConverter(),
	}
}

func (a *Adapter) SourceID() string   { return sourceID }
func (a *Adapter) SourceName() string { return sourceName }

// ensureSession refreshes the session token if it is unset or older than
// sessionTTL.
func (a *Adapter) ensureSession(ctx context.Context) error {
	a.mu.Lock()
	stale := a.token == "" || time.Since(a.tokenIssued) >= sessionTTL
	a.mu.Unlock()
	if !stale {
		return nil
	}
	return a.refreshSession(ctx)
}

func (a *Adapter) refreshSession(ctx context.Context) error {
	token, err := a.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("taobao: refresh session: %w", err)
	}
	a.mu.Lock()
	a.token = token
	a.tokenIssued = time.Now()
	a.mu.Unlock()
	return nil
}

// get performs one rate-limited, anti-bot-aware GET against Taobao's
// documentation API, refreshing the session and retrying up to
// maxAntiBotRetries times on a detected challenge before surfacing a fatal
// error, per the documented backoff schedule (5 minutes, doubled on the
// second offense).
func (a *Adapter) get(ctx context.Context, url string) ([]byte, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, respURL, err := a.doGet(ctx, url)
		if err != nil {
			return nil, err
		}

		if !isChallenge(body, respURL) {
			a.mu.Lock()
			a.antiBotHits = 0
			a.mu.Unlock()
			return body, nil
		}

		if attempt >= maxAntiBotRetries {
			return nil, fmt.Errorf("taobao: anti-bot challenge persisted after %d retries", maxAntiBotRetries)
		}

		a.mu.Lock()
		a.antiBotHits++
		hits := a.antiBotHits
		a.mu.Unlock()

		backoff := antiBotBaseBackoff
		if hits >= 2 {
			backoff *= 2
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		if err := a.refreshSession(ctx); err != nil {
			return nil, err
		}
	}
}

func (a *Adapter) doGet(ctx context.Context, url string) (body []byte, respURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()
	req.Header.Set("Cookie", "_tb_token_="+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Request.URL.String(), nil
}

// isChallenge classifies a response as an anti-bot hit per Taobao's
// documented markers: known error strings in the body, a punish/captcha
// redirect URL, or a body that isn't even a JSON object.
func isChallenge(body []byte, respURL string) bool {
	text := string(body)
	if adapter.IsAntiBotBody(text) {
		return true
	}
	if adapter.IsAntiBotURL(respURL) {
		return true
	}
	return !adapter.LooksLikeJSONObject(text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type catalogEntry struct {
	APIName string `json:"api_name"`
	Title   string `json:"title"`
	DocID   string `json:"doc_id"`
}

type catalogResponse struct {
	APIs []catalogEntry `json:"apis"`
}

// FetchCatalog fetches the flat API listing from Taobao's documentation
// index.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	body, err := a.get(ctx, baseURL+"/doc.htm?docType=2&docId=list")
	if err != nil {
		return nil, fmt.Errorf("taobao: fetch catalog: %w", err)
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("taobao: decode catalog: %w", err)
	}

	entries := make([]adapter.DocEntry, 0, len(parsed.APIs))
	for _, api := range parsed.APIs {
		entries = append(entries, adapter.DocEntry{
			Path:       api.APIName,
			Title:      api.Title,
			APIPath:    api.APIName,
			DocType:    "api_reference",
			PlatformID: api.DocID,
		})
	}
	return entries, nil
}

type contentResponse struct {
	HTML string `json:"content_html"`
}

// FetchContent fetches one API's rendered documentation and converts it to
// Markdown.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	url := fmt.Sprintf("%s/doc.htm?docType=2&docId=%s", baseURL, entry.PlatformID)
	body, err := a.get(ctx, url)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("taobao: fetch content %s: %w", entry.Path, err)
	}

	var parsed contentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return adapter.DocContent{}, fmt.Errorf("taobao: decode content %s: %w", entry.Path, err)
	}

	markdown, err := a.converter.Convert(parsed.HTML)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("taobao: convert markdown %s: %w", entry.Path, err)
	}

	return adapter.DocContent{
		Markdown:   markdown,
		APIPath:    entry.APIPath,
		ErrorCodes: adapter.ExtractErrorCodes(markdown),
	}, nil
}

// DetectUpdates delegates to FetchCatalog; the sync runner short-circuits
// unchanged content by hash comparison.
func (a *Adapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return a.FetchCatalog(ctx)
}

// CookieSessionRefresher reads a session token from a fixed cookie string,
// for deployments that refresh the cookie out-of-band (a cron job driving
// a headless login) rather than through an in-process browser flow.
type CookieSessionRefresher struct {
	Cookie string
}

func (c CookieSessionRefresher) Refresh(ctx context.Context) (string, error) {
	token := strings.TrimSpace(c.Cookie)
	if token == "" {
		return "", fmt.Errorf("taobao: no session cookie configured")
	}
	return token, nil
}
