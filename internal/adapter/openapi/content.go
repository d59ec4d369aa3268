package openapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
)

// FetchContent renders one operation to Markdown: title, deprecation
// banner, description, parameters grouped by location, request body, and
// per-status-code responses.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	doc, err := a.loadSpec(ctx)
	if err != nil {
		return adapter.DocContent{}, err
	}

	method, route, ok := splitAPIPath(entry.APIPath)
	if !ok {
		return adapter.DocContent{}, fmt.Errorf("malformed api path %q", entry.APIPath)
	}
	pathItem := doc.Paths.Find(route)
	if pathItem == nil {
		return adapter.DocContent{}, fmt.Errorf("path %q not found in spec", route)
	}
	op := pathItem.Operations()[method]
	if op == nil {
		return adapter.DocContent{}, fmt.Errorf("operation %s %s not found in spec", method, route)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", operationTitle(op, method, route))
	if op.Deprecated {
		b.WriteString("> ⚠️ 此接口已废弃\n\n")
	}
	if op.Description != "" {
		b.WriteString(op.Description + "\n\n")
	}

	r := &renderer{doc: doc}
	writeParameterTables(&b, op.Parameters)
	r.writeRequestBody(&b, op.RequestBody)
	errorCodes := r.writeResponses(&b, op.Responses)

	return adapter.DocContent{
		Markdown:   b.String(),
		APIPath:    entry.APIPath,
		ErrorCodes: errorCodes,
	}, nil
}

func splitAPIPath(apiPath string) (method, route string, ok bool) {
	parts := strings.SplitN(apiPath, " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

var paramLocations = []string{"path", "query", "header", "cookie"}

func writeParameterTables(b *strings.Builder, params openapi3.Parameters) {
	byLocation := make(map[string][]*openapi3.Parameter)
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		byLocation[ref.Value.In] = append(byLocation[ref.Value.In], ref.Value)
	}

	for _, loc := range paramLocations {
		ps := byLocation[loc]
		if len(ps) == 0 {
			continue
		}
		fmt.Fprintf(b, "**参数（%s）**\n\n", loc)
		b.WriteString("| 名称 | 类型 | 必填 | 说明 |\n| --- | --- | --- | --- |\n")
		for _, p := range ps {
			typ := "—"
			if p.Schema != nil && p.Schema.Value != nil {
				typ = schemaTypeLabel(p.Schema.Value)
			}
			required := "否"
			if p.Required {
				required = "是"
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", p.Name, typ, required, firstLine(p.Description))
		}
		b.WriteString("\n")
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

type renderer struct {
	doc *openapi3.T
}

func (r *renderer) writeRequestBody(b *strings.Builder, ref *openapi3.RequestBodyRef) {
	if ref == nil || ref.Value == nil {
		return
	}
	media := ref.Value.Content.Get("application/json")
	if media == nil {
		for _, m := range ref.Value.Content {
			media = m
			break
		}
	}
	if media == nil || media.Schema == nil {
		return
	}
	b.WriteString("**请求体**\n\n")
	b.WriteString(r.renderSchema(media.Schema, 0, map[string]bool{}))
	b.WriteString("\n\n")
}

// writeResponses emits one block per status code and returns ErrorCode
// entries for every non-2xx, non-default status, schema
// rendering rules.
func (r *renderer) writeResponses(b *strings.Builder, responses *openapi3.Responses) []models.ErrorCode {
	if responses == nil {
		return nil
	}
	var codes []string
	for code := range responses.Map() {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var errorCodes []models.ErrorCode
	b.WriteString("**响应**\n\n")
	for _, code := range codes {
		ref := responses.Value(code)
		if ref == nil || ref.Value == nil {
			continue
		}
		desc := ""
		if ref.Value.Description != nil {
			desc = *ref.Value.Description
		}
		fmt.Fprintf(b, "- `%s`：%s\n", code, desc)

		if media := ref.Value.Content.Get("application/json"); media != nil && media.Schema != nil {
			b.WriteString(r.renderSchema(media.Schema, 1, map[string]bool{}))
		}

		if code != "default" && !strings.HasPrefix(code, "2") {
			errorCodes = append(errorCodes, models.ErrorCode{Code: code, Description: desc})
		}
	}
	b.WriteString("\n")
	return errorCodes
}
