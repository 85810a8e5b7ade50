package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"yeti/core"

	"github.com/xeipuuv/gojsonschema"
)

// searchSchemaJSON describes the body accepted by the search endpoints
const searchSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "filter": {
      "type": "object",
      "maxProperties": 32,
      "propertyNames": {"pattern": "^[a-z_]+(__[a-z]+)?$", "maxLength": 64},
      "additionalProperties": {
        "oneOf": [
          {"type": ["string", "number", "boolean"]},
          {
            "type": "array",
            "maxItems": 100,
            "items": {"type": ["string", "number", "boolean"]}
          }
        ]
      }
    },
    "page": {"type": "integer", "minimum": 0, "maximum": 1000000},
    "range": {"type": "integer", "minimum": 0},
    "regex": {"type": "boolean"}
  }
}`

var searchSchema = mustCompileSchema(searchSchemaJSON)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid search schema: %v", err))
	}
	return s
}

// parseSearchQuery validates raw against the search schema and decodes it.
// An empty body is an empty query.
func parseSearchQuery(raw []byte) (*core.SearchQuery, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &core.SearchQuery{Filter: map[string]interface{}{}}, nil
	}

	result, err := searchSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, core.NewValidationError("body", "must be a JSON object")
	}
	if !result.Valid() {
		ve := &core.ValidationError{Message: "search payload failed schema validation"}
		for _, desc := range result.Errors() {
			ve.Fields = append(ve.Fields, core.FieldError{Field: desc.Field(), Message: desc.Description()})
		}
		return nil, ve
	}

	var q core.SearchQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("failed to decode search payload: %w", err)
	}
	return &q, nil
}

// decodeSearchQuery reads and parses the search body, writing the error response on failure
func (a *API) decodeSearchQuery(w http.ResponseWriter, r *http.Request) (*core.SearchQuery, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err, a.logger)
		} else {
			writeError(w, r, http.StatusBadRequest, "Failed to read request body", err, a.logger)
		}
		return nil, false
	}

	q, err := parseSearchQuery(raw)
	if err != nil {
		if core.IsValidationError(err) {
			a.writeServiceError(w, r, err)
		} else {
			writeError(w, r, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
		}
		return nil, false
	}
	return q, true
}
