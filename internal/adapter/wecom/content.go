package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
)

const (
	maxCaptchaRetries = 3
	captchaBackoff    = 3 * time.Second
	maxRateRetries    = 5
	rateBackoff       = 1500 * time.Millisecond

	wecomCaptchaErrCode = 500003
)

var lastUpdatedPattern = regexp.MustCompile(`最后更新[：:]\s*(\d{4}-\d{2}-\d{2})`)

// fetchContentResult is the parsed shape of the fetchCnt response.
type fetchContentResult struct {
	Result struct {
		ErrCode int    `json:"errCode"`
		HTML    string `json:"content"`
		Extra   struct {
			UpdateTime     string `json:"update_time"`
			LastUpdateTime string `json:"last_update_time"`
			LastUpdateStr  string `json:"last_update_time_str"`
			Time           string `json:"time"`
		} `json:"extra"`
	} `json:"result"`
}

// FetchContent fetches one catalog entry's rendered HTML, converts it to
// Markdown via the shared pipeline, and extracts error codes and the most
// recent update timestamp, content-fetch step.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	pageHTML, err := a.fetchDocPage(ctx, entry.PlatformID)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("wecom: fetch doc page %s: %w", entry.PlatformID, err)
	}

	result, err := a.fetchDocContent(ctx, entry.PlatformID)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("wecom: fetch doc content %s: %w", entry.PlatformID, err)
	}

	markdown, err := a.converter.Convert(result.Result.HTML)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("wecom: convert markdown %s: %w", entry.PlatformID, err)
	}

	codes := adapter.ExtractErrorCodes(markdown)
	metadata, _ := json.Marshal(map[string]string{
		"last_updated": extractLastUpdated(pageHTML, result).Format(time.RFC3339),
	})

	return adapter.DocContent{
		Markdown:   markdown,
		APIPath:    entry.APIPath,
		ErrorCodes: codes,
		Metadata:   string(metadata),
	}, nil
}

// fetchDocPage GETs the rendered doc page, used both for the health check
// and to recover the HTML-embedded "最后更新" date fallback.
func (a *Adapter) fetchDocPage(ctx context.Context, docID string) (string, error) {
	if err := a.stepper.Wait(ctx); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/document/path/%s", baseURL, docID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", a.cookieHeader())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fetchDocContent POSTs to fetchCnt, retrying on captcha and rate-limit
// responses with their documented backoff schedules.
func (a *Adapter) fetchDocContent(ctx context.Context, docID string) (fetchContentResult, error) {
	var result fetchContentResult

	for captchaAttempt := 0; captchaAttempt <= maxCaptchaRetries; captchaAttempt++ {
		for rateAttempt := 0; rateAttempt <= maxRateRetries; rateAttempt++ {
			if err := a.stepper.Wait(ctx); err != nil {
				return result, err
			}

			body, status, err := a.postFetchCnt(ctx, docID)
			if err != nil {
				return result, err
			}

			if status == http.StatusTooManyRequests {
				if rateAttempt == maxRateRetries {
					return result, fmt.Errorf("rate limited after %d retries", maxRateRetries)
				}
				if err := sleepCtx(ctx, rateBackoff*time.Duration(rateAttempt+1)); err != nil {
					return result, err
				}
				continue
			}

			if err := json.Unmarshal(body, &result); err != nil {
				return result, fmt.Errorf("decode fetchCnt response: %w", err)
			}

			if isCaptchaResponse(result, string(body)) {
				break // fall through to outer captcha retry
			}
			return result, nil
		}

		if captchaAttempt == maxCaptchaRetries {
			return result, fmt.Errorf("captcha challenge persisted after %d retries", maxCaptchaRetries)
		}
		if err := sleepCtx(ctx, captchaBackoff*time.Duration(captchaAttempt+1)); err != nil {
			return result, err
		}
	}
	return result, fmt.Errorf("exhausted retries")
}

func (a *Adapter) postFetchCnt(ctx context.Context, docID string) ([]byte, int, error) {
	payload, err := json.Marshal(map[string]string{"doc_id": docID})
	if err != nil {
		return nil, 0, err
	}

	url := baseURL + "/document/api/doc/fetchCnt"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", a.cookieHeader())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func isCaptchaResponse(result fetchContentResult, rawBody string) bool {
	return result.Result.ErrCode == wecomCaptchaErrCode || strings.Contains(rawBody, "showDeveloperCaptcha")
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

// extractLastUpdated applies its date-extraction priority chain: the
// fetchCnt "time" field, the "最后更新：YYYY-MM-DD" marker in the rendered
// page HTML, then extra.update_time/last_update_time/last_update_time_str,
// keeping the most recent parsed value found.
func extractLastUpdated(pageHTML string, result fetchContentResult) time.Time {
	var candidates []time.Time

	if t, ok := parseAnyTime(result.Result.Extra.Time); ok {
		candidates = append(candidates, t)
	}
	if m := lastUpdatedPattern.FindStringSubmatch(pageHTML); m != nil {
		if t, ok := parseAnyTime(m[1]); ok {
			candidates = append(candidates, t)
		}
	}
	for _, raw := range []string{
		result.Result.Extra.UpdateTime,
		result.Result.Extra.LastUpdateTime,
		result.Result.Extra.LastUpdateStr,
	} {
		if t, ok := parseAnyTime(raw); ok {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		return time.Time{}
	}
	latest := candidates[0]
	for _, c := range candidates[1:] {
		if c.After(latest) {
			latest = c
		}
	}
	return latest
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseAnyTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if unixSeconds, ok := parseUnixSeconds(raw); ok {
		return unixSeconds, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseUnixSeconds(raw string) (time.Time, bool) {
	if len(raw) != 10 {
		return time.Time{}, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	var sec int64
	if _, err := fmt.Sscanf(raw, "%d", &sec); err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}
