package adapter

import (
	"regexp"
	"strings"

	"github.com/specfusion/specfusion/internal/models"
)

// errorCodeRowPattern matches Markdown table rows shaped like
// "| 60011 | no privilege | the member has no privilege |",
// error-code extraction step.
var errorCodeRowPattern = regexp.MustCompile(`\|\s*(-?\d{3,6})\s*\|\s*([^|]*)\|\s*([^|]*)\|`)

// ExtractErrorCodes scans markdown for error-code table rows and returns
// deduplicated {code, message, description} triples.
func ExtractErrorCodes(markdown string) []models.ErrorCode {
	matches := errorCodeRowPattern.FindAllStringSubmatch(markdown, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]models.ErrorCode, 0, len(matches))

	for _, m := range matches {
		code := strings.TrimSpace(m[1])
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, models.ErrorCode{
			Code:        code,
			Message:     strings.TrimSpace(m[2]),
			Description: strings.TrimSpace(m[3]),
		})
	}
	return out
}
