// Package markdown provides the shared HTML→Markdown normalization
// pipeline reused by every scraping adapter: script/style
// stripping, code-block fencing, inline conversions, and final
// blank-line collapsing.
package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

var (
	codeLangPattern  = regexp.MustCompile(`language-(\S+)`)
	brPattern        = regexp.MustCompile(`(?i)<br\s*/?>`)
	residualAnchor   = regexp.MustCompile(`(?i)<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// Converter wraps html-to-markdown with tag-by-tag normalization rules,
// layered as overrides rather than hand-rolled regexps for every tag.
type Converter struct {
	conv *md.Converter
}

// NewConverter builds a converter with the GitHub-flavored plugin enabled
// (fenced code blocks, strikethrough, tables) and a reduced attribute set
// on anchors/images.
func NewConverter() *Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Converter{conv: conv}
}

// Convert runs the full pipeline on rawHTML and returns normalized
// Markdown.
func (c *Converter) Convert(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style").Remove()
	fenceCodeBlocks(doc)
	reduceAttributes(doc)

	cleanedHTML, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize cleaned html: %w", err)
	}

	out, err := c.conv.ConvertString(cleanedHTML)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	out = residualAnchor.ReplaceAllString(out, "[$2]($1)")
	out = collapseBlankLines(out)
	return strings.TrimSpace(out) + "\n", nil
}

// fenceCodeBlocks rewrites <pre><code class="language-X">...</code></pre>
// into a form html-to-markdown renders as a fenced block with the
// original language tag preserved, decoding HTML entities and turning
// <br> into literal newlines first.
func fenceCodeBlocks(doc *goquery.Document) {
	doc.Find("pre code").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		lang := ""
		if m := codeLangPattern.FindStringSubmatch(class); m != nil {
			lang = m[1]
		}

		raw, err := sel.Html()
		if err != nil {
			return
		}
		raw = brPattern.ReplaceAllString(raw, "\n")
		raw = html.UnescapeString(stripTags(raw))
		raw = strings.TrimRight(raw, " \t\n")

		sel.SetText(raw)
		if lang != "" {
			sel.SetAttr("class", "language-"+lang)
		}
	})
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// reduceAttributes drops every attribute except href/src/alt/title (plus
// the language class fenceCodeBlocks just set on <code>).
func reduceAttributes(doc *goquery.Document) {
	keep := map[string]bool{"href": true, "src": true, "alt": true, "title": true}
	doc.Find("*").Not("code").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil {
			return
		}
		var kept []struct{ Key, Val string }
		for _, attr := range node.Attr {
			if keep[attr.Key] {
				kept = append(kept, struct{ Key, Val string }{attr.Key, attr.Val})
			}
		}
		node.Attr = node.Attr[:0]
		for _, a := range kept {
			sel.SetAttr(a.Key, a.Val)
		}
	})
}

func collapseBlankLines(s string) string {
	return blankRunsPattern.ReplaceAllString(s, "\n\n")
}
