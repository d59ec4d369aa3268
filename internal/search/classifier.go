package search

import (
	"regexp"
	"strings"

	"github.com/specfusion/specfusion/internal/models"
)

var (
	errCodeBarePattern = regexp.MustCompile(`^\d+$`)
	errCodePrefixed    = regexp.MustCompile(`(?i)^errcode\s*(\d+)$`)
)

// Classify implements its query classifier: trim, then test for an
// error-code shape, then an api-path shape, else keyword.
func Classify(query string) models.QueryKind {
	q := strings.TrimSpace(query)
	if errCodeBarePattern.MatchString(q) || errCodePrefixed.MatchString(q) {
		return models.QueryErrCode
	}
	if strings.HasPrefix(q, "/") || strings.Contains(q, "/cgi-bin/") || strings.Contains(q, "/open-apis/") {
		return models.QueryAPIPath
	}
	return models.QueryKeyword
}

// NormalizeErrorCode strips an optional "errcode " prefix and returns the
// bare numeric code, per the error-code path's first step.
func NormalizeErrorCode(query string) string {
	q := strings.TrimSpace(query)
	if m := errCodePrefixed.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	return q
}
