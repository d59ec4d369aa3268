// Package tokenizer provides the Chinese-aware, write/query-symmetric
// tokenization pipeline that feeds both the FTS index and search queries.
//
// The segmenter dictionary is process-wide and lazily initialized on first
// use, per the "global state" design note: callers may call Init explicitly
// (e.g. at server startup, to fail fast on a bad dictionary path) or simply
// start calling Tokenize/TokenizeQuery, which initializes with defaults.
package tokenizer

import (
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/go-ego/gse"
)

// stopWords are dropped after protection/segmentation.
var stopWords = buildStopSet(
	"的", "了", "是", "在", "有", "和", "与", "或", "等", "把",
	"被", "对", "不", "也", "都", "而", "及", "到", "从", "以",
)

func buildStopSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// protectPattern recognizes, in priority order: absolute URLs, slash-delimited
// path-like substrings, alphanumeric identifiers optionally containing ':' or
// '.', and digit runs. Each match is emitted verbatim as a single token.
var protectPattern = regexp.MustCompile(
	`https?://[^\s"'<>]+` + // (a) absolute URLs
		`|/[\w\-./]*[\w\-]` + // (b) slash-delimited path-like substrings
		`|[A-Za-z][\w.:]*[\w]` + // (c) identifiers optionally containing ':' or '.'
		`|\d+`, // (d) digit runs
)

// punctOnly matches strings made up entirely of punctuation/symbol runes.
var punctOnly = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)

// Tokenizer produces deterministic whitespace-separated token streams from
// arbitrary Unicode text. The same instance (and thus the same loaded
// dictionary) must be used for both indexing and querying.
type Tokenizer struct {
	mu   sync.Mutex
	seg  gse.Segmenter
	init bool
}

var (
	defaultOnce sync.Once
	defaultTok  *Tokenizer
)

// Default returns the process-wide Tokenizer, initializing it with the
// built-in dictionary (and USERDICT_PATH, if previously configured via
// Init) on first call.
func Default() *Tokenizer {
	defaultOnce.Do(func() {
		defaultTok = &Tokenizer{}
	})
	return defaultTok
}

// Init loads the segmenter's base dictionary plus an optional user
// dictionary file (one "word weight" pair per line, space-separated, per
// its USERDICT_PATH). It is safe to call multiple times; only the first
// call has effect. Init is optional — Tokenize/TokenizeQuery lazily
// initialize with an empty user dictionary if Init was never called.
func (t *Tokenizer) Init(userDictPath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initLocked(userDictPath)
}

func (t *Tokenizer) initLocked(userDictPath string) error {
	if t.init {
		return nil
	}
	if err := t.seg.LoadDict(); err != nil {
		return err
	}
	if userDictPath != "" {
		if err := t.seg.LoadDict(userDictPath); err != nil {
			return err
		}
	}
	t.init = true
	return nil
}

func (t *Tokenizer) ensureInit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.init {
		_ = t.initLocked("")
	}
}

// Tokenize runs write-mode tokenization (the segmenter's standard cut) and
// returns a whitespace-joined token stream, the form stored in
// tokenized_title / tokenized_content. Never panics on malformed UTF-8;
// invalid bytes are skipped.
func (t *Tokenizer) Tokenize(text string) string {
	return joinTokens(t.tokenize(text, false))
}

// TokenizeQuery runs query-mode tokenization (the segmenter's search-
// optimized cut, which may emit both coarse and fine granularities) and
// deduplicates while preserving first-seen order, "Two modes".
func (t *Tokenizer) TokenizeQuery(text string) []string {
	return dedupPreserveOrder(t.tokenize(text, true))
}

// tokenize scans text once with the protection regex, handing the gaps
// between matches to the Chinese segmenter, and drops stop-words/punctuation.
func (t *Tokenizer) tokenize(text string, search bool) []string {
	text = sanitizeUTF8(text)
	if text == "" {
		return nil
	}
	t.ensureInit()

	var out []string
	last := 0
	matches := protectPattern.FindAllStringIndex(text, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > last {
			out = append(out, t.segment(text[last:start], search)...)
		}
		out = append(out, text[start:end])
		last = end
	}
	if last < len(text) {
		out = append(out, t.segment(text[last:], search)...)
	}
	return filterStopwords(out)
}

func (t *Tokenizer) segment(s string, search bool) []string {
	if s == "" {
		return nil
	}
	t.mu.Lock()
	seg := t.seg
	t.mu.Unlock()
	if search {
		return seg.CutSearch(s, true)
	}
	return seg.Cut(s, true)
}

func filterStopwords(in []string) []string {
	out := in[:0]
	for _, s := range in {
		s = trimSpaceRunes(s)
		if s == "" {
			continue
		}
		if _, stop := stopWords[s]; stop {
			continue
		}
		if punctOnly.MatchString(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func dedupPreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func joinTokens(toks []string) string {
	if len(toks) == 0 {
		return ""
	}
	n := len(toks) - 1
	for _, s := range toks {
		n += len(s)
	}
	b := make([]byte, 0, n)
	for i, s := range toks {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, s...)
	}
	return string(b)
}

// sanitizeUTF8 drops invalid byte sequences instead of propagating them, so
// the tokenizer never panics on malformed input.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		out = append(out, r)
	}
	return string(out)
}

func trimSpaceRunes(s string) string {
	start, end := 0, len(s)
	for start < end {
		r, size := utf8.DecodeRuneInString(s[start:])
		if !isSpaceRune(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(s[start:end])
		if !isSpaceRune(r) {
			break
		}
		end -= size
	}
	return s[start:end]
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '　':
		return true
	}
	return false
}
