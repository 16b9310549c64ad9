package swaggerkit

import (
	"encoding/json"
	"net/http"
	"strings"

	perr "pulseboard/internal/platform/errors"
)

// errorSchema mirrors the error side of the response envelope
var errorSchema = map[string]any{
	"type":        "object",
	"description": "Error envelope",
	"properties": map[string]any{
		"status_code": map[string]any{"type": "integer", "format": "int32"},
		"status":      map[string]any{"type": "string"},
		"code":        map[string]any{"type": "string"},
		"error":       map[string]any{"type": "string"},
		"field":       map[string]any{"type": "string"},
		"request_id":  map[string]any{"type": "string"},
	},
	"required": []any{"status_code", "status", "code"},
}

// defaultResponses are added to every operation that does not document the status itself
var defaultResponses = []struct {
	status string
	code   perr.ErrorCode
	msg    string
}{
	{"400", perr.ErrorCodeValidation, "organization_id is required"},
	{"500", perr.ErrorCodeDB, "rollup ledger"},
}

// prepare normalizes a generated spec for the bundled UI
// the UI only renders OAS 3.0, so swagger 2 and 3.1 documents are relabelled
func prepare(raw []byte, basePath, titleSuffix string) ([]byte, error) {
	var spec map[string]any
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "swagger spec")
	}

	delete(spec, "swagger")
	if v, _ := spec["openapi"].(string); !strings.HasPrefix(v, "3.0") {
		spec["openapi"] = "3.0.3"
	}
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": basePath}}
	}
	if info, ok := spec["info"].(map[string]any); ok && titleSuffix != "" {
		if title, ok := info["title"].(string); ok {
			info["title"] = title + " " + titleSuffix
		}
	}

	comps := child(spec, "components")
	schemas := child(comps, "schemas")
	if _, ok := schemas["ErrorResponse"]; !ok {
		schemas["ErrorResponse"] = errorSchema
	}

	paths, _ := spec["paths"].(map[string]any)
	for _, node := range paths {
		ops, ok := node.(map[string]any)
		if !ok {
			continue
		}
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			resps := child(o, "responses")
			for _, d := range defaultResponses {
				if _, ok := resps[d.status]; !ok {
					resps[d.status] = errorResponse(d.code, d.msg)
				}
			}
		}
	}
	return json.Marshal(spec)
}

func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}

func errorResponse(code perr.ErrorCode, msg string) map[string]any {
	status := perr.HTTPStatusCode(code)
	return map[string]any{
		"description": http.StatusText(status),
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
				"example": map[string]any{
					"status_code": status,
					"status":      http.StatusText(status),
					"code":        code.String(),
					"error":       msg,
				},
			},
		},
	}
}

// serveDocJSON renders the prepared spec; a broken generated spec is a 500
func serveDocJSON(basePath, titleSuffix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := prepare([]byte(docReader()), basePath, titleSuffix)
		if err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(out)
	}
}
