package definition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the externally-visible shape of a workflow definition
// document. Field-level semantics (dangling references, kind coherence) are
// checked by Validate after decoding.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["metadata", "nodes", "entry_node"],
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 3},
        "description": {"type": "string"},
        "version": {"type": "string"}
      }
    },
    "variables": {"type": "object"},
    "entry_node": {"type": "string", "minLength": 1},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/node"}
    }
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "type": {
          "type": "string",
          "enum": ["agent", "tool", "service", "condition", "loop", "parallel", "sequence"]
        },
        "name": {"type": "string"},
        "target": {"type": "string"},
        "params": {"type": "object"},
        "depends_on": {"type": "array", "items": {"type": "string"}},
        "retry_policy": {
          "type": "object",
          "required": ["max_attempts"],
          "properties": {
            "max_attempts": {"type": "integer", "minimum": 1},
            "initial_delay": {"type": ["string", "number"]},
            "backoff_factor": {"type": "number", "minimum": 1},
            "max_delay": {"type": ["string", "number"]},
            "retry_on_errors": {"type": "array", "items": {"type": "string"}}
          }
        },
        "condition": {
          "type": "object",
          "required": ["expression"],
          "properties": {
            "expression": {"type": "string", "minLength": 1},
            "strict": {"type": "boolean"}
          }
        },
        "loop": {
          "type": "object",
          "required": ["kind", "max_iterations"],
          "properties": {
            "kind": {"type": "string", "enum": ["foreach", "while"]},
            "items": {"type": "string"},
            "predicate": {"type": "string"},
            "max_iterations": {"type": "integer", "minimum": 1},
            "item_var": {"type": "string"},
            "parallel": {"type": "boolean"}
          }
        },
        "nodes": {"type": "array", "items": {"$ref": "#/definitions/node"}},
        "timeout": {"type": ["string", "number"]},
        "continue_on_error": {"type": "boolean"}
      }
    }
  }
}`

// checkSchema validates the decoded document shape against the JSON schema.
func checkSchema(document map[string]any) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return &Error{Kind: ErrKindSchema, Message: "document is not JSON-serializable", Err: err}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return &Error{Kind: ErrKindSchema, Message: "schema validation failed", Err: err}
	}

	if !result.Valid() {
		defects := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			defects = append(defects, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}

		return newError(ErrKindSchema, "", "%s", strings.Join(defects, "; "))
	}

	return nil
}
