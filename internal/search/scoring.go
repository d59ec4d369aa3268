package search

import (
	"math"
	"strings"
	"time"

	"github.com/specfusion/specfusion/internal/models"
)

// score implements its composite scoring formula. bm25Rank is the raw
// (negative) value SQLite's bm25() returns; the LIKE fallback scan, which
// has no rank, passes 0. The error-code and api-path paths assign a flat
// score of 50 instead of calling score.
func score(doc *models.Document, queryTokens []string, rawQuery string, bm25Rank float64, now time.Time) float64 {
	var s float64

	if doc.Title != "" && containsFold(doc.Title, rawQuery) {
		s += 20
	}

	if len(queryTokens) > 0 {
		titleLower := strings.ToLower(doc.Title)
		matched := 0
		for _, tok := range queryTokens {
			if strings.Contains(titleLower, strings.ToLower(tok)) {
				matched++
			}
		}
		s += 5 * float64(matched) / float64(len(queryTokens))
	}

	s += math.Abs(bm25Rank)

	if doc.DocType == models.DocTypeAPIReference {
		s += 3
	}

	if !doc.LastUpdated.IsZero() {
		age := now.Sub(doc.LastUpdated)
		switch {
		case age <= 30*24*time.Hour:
			s += 3
		case age <= 90*24*time.Hour:
			s += 1
		}
	}

	s -= 0.5 * float64(doc.PathDepth)

	return roundToTwoDecimals(s)
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func roundToTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}

const flatMatchScore = 50
