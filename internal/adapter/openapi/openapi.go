// Package openapi implements the generic OpenAPI 2/3 source adapter:
// any REST API that publishes a Swagger/OpenAPI document can be
// registered as a source without platform-specific scraping.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
)

// Adapter loads one OpenAPI document and exposes one DocEntry per
// operation (path × method).
type Adapter struct {
	sourceID string
	name     string
	specURL  string
	client   *http.Client

	doc *openapi3.T
}

// New constructs an Adapter for the document at specURL.
func New(sourceID, name, specURL string) *Adapter {
	return &Adapter{
		sourceID: sourceID,
		name:     name,
		specURL:  specURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) SourceID() string   { return a.sourceID }
func (a *Adapter) SourceName() string { return a.name }

// loadSpec fetches and parses the document once per run. JSON is
// attempted first; YAML is the fallback. A swagger:"2.0" document is
// upgraded via kin-openapi's own v2→v3 conversion.
func (a *Adapter) loadSpec(ctx context.Context) (*openapi3.T, error) {
	if a.doc != nil {
		return a.doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.specURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build spec request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch spec: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read spec body: %w", err)
	}

	doc, err := a.parseSpec(body)
	if err != nil {
		return nil, err
	}
	a.doc = doc
	return doc, nil
}

func (a *Adapter) parseSpec(body []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	if isSwagger2(body) {
		converted, err := convertSwagger2JSONOrYAML(body)
		if err != nil {
			return nil, fmt.Errorf("convert swagger 2.0 document: %w", err)
		}
		body = converted
	}

	if doc, err := loader.LoadFromData(body); err == nil {
		return doc, nil
	}

	var asYAML interface{}
	if err := yaml.Unmarshal(body, &asYAML); err != nil {
		return nil, fmt.Errorf("parse spec as json or yaml: %w", err)
	}
	jsonBody, err := yamlToJSON(asYAML)
	if err != nil {
		return nil, fmt.Errorf("convert yaml spec to json: %w", err)
	}
	doc, err := loader.LoadFromData(jsonBody)
	if err != nil {
		return nil, fmt.Errorf("load converted spec: %w", err)
	}
	return doc, nil
}

func isSwagger2(body []byte) bool {
	return bytes.Contains(body, []byte(`"swagger"`)) && bytes.Contains(body, []byte(`"2.0"`)) ||
		bytes.Contains(body, []byte("swagger:")) && bytes.Contains(body, []byte("2.0"))
}

// convertSwagger2JSONOrYAML loads a Swagger 2.0 document (JSON or YAML)
// and upgrades it to OpenAPI 3 using kin-openapi's openapi2conv.ToV3,
// then re-serializes to JSON for the regular v3 loader.
func convertSwagger2JSONOrYAML(body []byte) ([]byte, error) {
	var swagger openapi2.T
	if err := json.Unmarshal(body, &swagger); err != nil {
		var asYAML interface{}
		if yerr := yaml.Unmarshal(body, &asYAML); yerr != nil {
			return nil, fmt.Errorf("parse swagger 2.0 document: %w", err)
		}
		jsonBody, jerr := yamlToJSON(asYAML)
		if jerr != nil {
			return nil, jerr
		}
		if err := json.Unmarshal(jsonBody, &swagger); err != nil {
			return nil, fmt.Errorf("parse swagger 2.0 document: %w", err)
		}
	}
	doc, err := openapi2conv.ToV3(&swagger)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func yamlToJSON(v interface{}) ([]byte, error) {
	normalized := normalizeYAMLMaps(v)
	return json.Marshal(normalized)
}

// normalizeYAMLMaps converts map[string]interface{} nodes (yaml.v3 emits
// these for object-shaped YAML) recursively so json.Marshal succeeds.
func normalizeYAMLMaps(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeYAMLMaps(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = normalizeYAMLMaps(vv)
		}
		return out
	default:
		return val
	}
}

// FetchCatalog iterates paths × methods, emitting one DocEntry per
// operation.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	doc, err := a.loadSpec(ctx)
	if err != nil {
		return nil, err
	}

	var entries []adapter.DocEntry
	for route, pathItem := range doc.Paths.Map() {
		for method, op := range pathItem.Operations() {
			tag := "default"
			if len(op.Tags) > 0 {
				tag = op.Tags[0]
			}
			platformID := op.OperationID
			if platformID == "" {
				platformID = strings.ToLower(method) + "-" + route
			}
			entries = append(entries, adapter.DocEntry{
				Path:       fmt.Sprintf("%s/%s %s", tag, method, route),
				Title:      operationTitle(op, method, route),
				APIPath:    method + " " + route,
				DocType:    models.DocTypeAPIReference,
				PlatformID: platformID,
			})
		}
	}
	return entries, nil
}

func operationTitle(op *openapi3.Operation, method, route string) string {
	if op.Summary != "" {
		return op.Summary
	}
	return method + " " + route
}

// DetectUpdates delegates to FetchCatalog; the SyncRunner short-circuits
// unchanged content by hash comparison, default implementation.
func (a *Adapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return a.FetchCatalog(ctx)
}
