package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const maxSchemaDepth = 5

// renderSchema implements its schema rendering rules: $ref resolution
// with depth cap 5 and cycle detection, allOf field-wise merge,
// oneOf/anyOf labeled variants, array element nesting, and enum value
// lists.
func (r *renderer) renderSchema(ref *openapi3.SchemaRef, depth int, visiting map[string]bool) string {
	if ref == nil {
		return ""
	}
	if depth > maxSchemaDepth {
		return indent(depth) + "…（已达最大嵌套深度）\n"
	}

	if ref.Ref != "" {
		if !strings.HasPrefix(ref.Ref, "#/") {
			return indent(depth) + fmt.Sprintf("[外部引用: %s]\n", ref.Ref)
		}
		name := refName(ref.Ref)
		if visiting[name] {
			return indent(depth) + fmt.Sprintf("[循环引用: %s]\n", name)
		}
		visiting = cloneVisiting(visiting)
		visiting[name] = true
	}

	schema := ref.Value
	if schema == nil {
		return ""
	}

	if len(schema.AllOf) > 0 {
		return r.renderAllOf(schema, depth, visiting)
	}
	if len(schema.OneOf) > 0 {
		return r.renderVariants(schema.OneOf, depth, visiting)
	}
	if len(schema.AnyOf) > 0 {
		return r.renderVariants(schema.AnyOf, depth, visiting)
	}
	if schemaIsArray(schema) && schema.Items != nil {
		var b strings.Builder
		b.WriteString(indent(depth) + "数组，元素类型：\n")
		b.WriteString(r.renderSchema(schema.Items, depth+1, visiting))
		return b.String()
	}
	if len(schema.Enum) > 0 {
		values := make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			values = append(values, fmt.Sprintf("`%v`", v))
		}
		return indent(depth) + fmt.Sprintf("枚举值：%s\n", strings.Join(values, ", "))
	}
	if len(schema.Properties) > 0 {
		return r.renderObject(schema, depth, visiting)
	}

	return indent(depth) + schemaTypeLabel(schema) + "\n"
}

func (r *renderer) renderAllOf(schema *openapi3.Schema, depth int, visiting map[string]bool) string {
	merged := &openapi3.Schema{
		Properties: make(openapi3.Schemas),
	}
	for _, sub := range schema.AllOf {
		if sub == nil || sub.Value == nil {
			continue
		}
		for name, prop := range sub.Value.Properties {
			merged.Properties[name] = prop
		}
		merged.Required = append(merged.Required, sub.Value.Required...)
	}
	return r.renderObject(merged, depth, visiting)
}

func (r *renderer) renderVariants(variants []*openapi3.SchemaRef, depth int, visiting map[string]bool) string {
	var b strings.Builder
	for i, v := range variants {
		fmt.Fprintf(&b, "%s方式%d：\n", indent(depth), i+1)
		b.WriteString(r.renderSchema(v, depth+1, visiting))
	}
	return b.String()
}

func (r *renderer) renderObject(schema *openapi3.Schema, depth int, visiting map[string]bool) string {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		prop := schema.Properties[name]
		marker := ""
		if required[name] {
			marker = "*"
		}
		typ := "—"
		if prop != nil && prop.Value != nil {
			typ = schemaTypeLabel(prop.Value)
		}
		fmt.Fprintf(&b, "%s- `%s`%s: %s\n", indent(depth), name, marker, typ)
		if prop != nil && prop.Value != nil && (len(prop.Value.Properties) > 0 || schemaIsArray(prop.Value) || len(prop.Value.AllOf) > 0) {
			b.WriteString(r.renderSchema(prop, depth+1, visiting))
		}
	}
	return b.String()
}

func schemaTypeLabel(schema *openapi3.Schema) string {
	if schema == nil {
		return "—"
	}
	if schema.Type != nil {
		types := schema.Type.Slice()
		if len(types) > 0 {
			return strings.Join(types, "|")
		}
	}
	return "object"
}

func schemaIsArray(schema *openapi3.Schema) bool {
	return schema != nil && schema.Type != nil && schema.Type.Is("array")
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func refName(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

func cloneVisiting(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
