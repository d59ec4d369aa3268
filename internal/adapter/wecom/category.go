package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
)

const (
	categoryListURL = baseURL + "/document/api/category/list"
	categoryDocsURL = baseURL + "/document/api/doc/list"
)

// rawCategory mirrors one entry of the flat category list response.
type rawCategory struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
	OrderID  int    `json:"order_id"`
	Status   int    `json:"status"`
}

// categoryNode is one node of the built tree, plus the documents filed
// directly under it.
type categoryNode struct {
	rawCategory
	Children []*categoryNode
	Docs     []rawDocRef
}

// rawDocRef is one document reference returned alongside category data.
type rawDocRef struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	APIPath string `json:"api_path"`
}

// FetchCatalog fetches the flat category list, builds the tree, and walks
// it depth-first to produce every document entry with its slug-chain path,
// its category tree + walk algorithm.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	if err := a.ensureCookies(ctx); err != nil {
		return nil, fmt.Errorf("wecom: ensure cookies: %w", err)
	}

	raws, err := a.fetchCategoryList(ctx)
	if err != nil {
		return nil, fmt.Errorf("wecom: fetch category list: %w", err)
	}

	roots := buildCategoryTree(raws)
	if err := a.attachDocs(ctx, roots); err != nil {
		return nil, fmt.Errorf("wecom: fetch category documents: %w", err)
	}

	var entries []adapter.DocEntry
	counters := map[string]int{}
	walkCategories(roots, nil, counters, &entries)
	return entries, nil
}

// attachDocs fetches the document list filed under each leaf-reachable
// category and attaches it to the corresponding tree node.
func (a *Adapter) attachDocs(ctx context.Context, roots []*categoryNode) error {
	var visit func(nodes []*categoryNode) error
	visit = func(nodes []*categoryNode) error {
		for _, node := range nodes {
			docs, err := a.fetchCategoryDocs(ctx, node.ID)
			if err != nil {
				return err
			}
			node.Docs = docs
			if err := visit(node.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(roots)
}

func (a *Adapter) fetchCategoryDocs(ctx context.Context, categoryID string) ([]rawDocRef, error) {
	if err := a.stepper.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"category_id": categoryID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, categoryDocsURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", a.cookieHeader())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Docs []rawDocRef `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode category docs: %w", err)
	}
	return payload.Docs, nil
}

func (a *Adapter) fetchCategoryList(ctx context.Context) ([]rawCategory, error) {
	if err := a.stepper.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, categoryListURL, bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", a.cookieHeader())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Categories []rawCategory `json:"categories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode category list: %w", err)
	}
	return payload.Categories, nil
}

// buildCategoryTree links parent/child, drops status != 2 (published)
// entries, and sorts siblings by order_id then title.
func buildCategoryTree(raws []rawCategory) []*categoryNode {
	byID := make(map[string]*categoryNode, len(raws))
	for _, rc := range raws {
		if rc.Status != 2 {
			continue
		}
		byID[rc.ID] = &categoryNode{rawCategory: rc}
	}

	var roots []*categoryNode
	for _, node := range byID {
		if node.ParentID == "" || byID[node.ParentID] == nil {
			roots = append(roots, node)
			continue
		}
		parent := byID[node.ParentID]
		parent.Children = append(parent.Children, node)
	}

	sortSiblings(roots)
	for _, node := range byID {
		sortSiblings(node.Children)
	}
	return roots
}

func sortSiblings(nodes []*categoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].OrderID != nodes[j].OrderID {
			return nodes[i].OrderID < nodes[j].OrderID
		}
		return nodes[i].Name < nodes[j].Name
	})
}

// walkCategories performs the depth-first walk producing slug-chain paths.
// counters tracks per-parent ordinal counts so slugs get zero-padded
// sequence prefixes scoped to their own branch.
func walkCategories(nodes []*categoryNode, pathSlugs []string, counters map[string]int, out *[]adapter.DocEntry) {
	parentKey := strings.Join(pathSlugs, "/")
	for _, node := range nodes {
		counters[parentKey]++
		ordinal := counters[parentKey]
		slug := fmt.Sprintf("%03d-%s", ordinal, slugify(node.Name))
		if hasSlugCollision(node, nodes) {
			slug += "-" + node.ID
		}
		childPath := append(append([]string{}, pathSlugs...), slug)

		for _, doc := range node.Docs {
			*out = append(*out, docEntryFromRef(doc, childPath))
		}
		walkCategories(node.Children, childPath, counters, out)
	}
}

func hasSlugCollision(node *categoryNode, siblings []*categoryNode) bool {
	target := slugify(node.Name)
	count := 0
	for _, s := range siblings {
		if slugify(s.Name) == target {
			count++
		}
	}
	return count > 1
}

func docEntryFromRef(doc rawDocRef, pathSlugs []string) adapter.DocEntry {
	path := strings.Join(pathSlugs, "/") + "/" + doc.DocID
	return adapter.DocEntry{
		Path:       path,
		Title:      doc.Title,
		APIPath:    doc.APIPath,
		DevMode:    devModeFromURL(doc.URL),
		DocType:    models.DocTypeGuide,
		SourceURL:  baseURL + doc.URL,
		PlatformID: doc.DocID,
	}
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)
	trimDashes   = regexp.MustCompile(`^-+|-+$`)
)

// slugify ASCII-normalizes a category title into a URL-safe path segment,
// preserving CJK characters verbatim since they are already path-safe.
func slugify(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	slug := nonSlugChars.ReplaceAllString(lower, "-")
	slug = trimDashes.ReplaceAllString(slug, "")
	if slug == "" {
		slug = "cat"
	}
	return slug
}

// devModeFromURL detects Wecom's dev_mode axis from URL fragments:
// /is_third/1 -> third_party, /is_sp/1 -> service_provider, else internal.
func devModeFromURL(url string) models.DevMode {
	switch {
	case strings.Contains(url, "/is_third/1"):
		return models.DevModeThirdParty
	case strings.Contains(url, "/is_sp/1"):
		return models.DevModeServiceProvider
	default:
		return models.DevModeInternal
	}
}
