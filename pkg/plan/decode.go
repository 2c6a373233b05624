package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DecodeError reports planner output that does not parse into one of the
// four documented action shapes. It is always fatal for the invocation.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid plan action: %s", e.Reason)
}

// toolSchemas holds one JSON schema per tool tag. Shape violations fail
// decoding; content filtering (e.g. insecure resource URLs) is left to the
// executor.
var toolSchemas = map[Tool]*gojsonschema.Schema{}

func init() {
	sources := map[Tool]string{
		ToolCreateTasks: `{
			"type": "object",
			"required": ["tool", "args"],
			"properties": {
				"tool": {"enum": ["create_tasks"]},
				"done": {"type": "boolean"},
				"message": {"type": "string"},
				"args": {
					"type": "object",
					"required": ["tasks"],
					"properties": {
						"tasks": {
							"type": "array",
							"minItems": 1,
							"maxItems": 7,
							"items": {"type": "string", "minLength": 1}
						}
					}
				}
			}
		}`,
		ToolAddResources: `{
			"type": "object",
			"required": ["tool", "args"],
			"properties": {
				"tool": {"enum": ["add_resources"]},
				"done": {"type": "boolean"},
				"message": {"type": "string"},
				"args": {
					"type": "object",
					"required": ["resources"],
					"properties": {
						"resources": {
							"type": "array",
							"minItems": 1,
							"items": {
								"type": "object",
								"required": ["title", "url"],
								"properties": {
									"title": {"type": "string"},
									"url": {"type": "string"}
								}
							}
						}
					}
				}
			}
		}`,
		ToolScheduleReminder: `{
			"type": "object",
			"required": ["tool", "args"],
			"properties": {
				"tool": {"enum": ["schedule_reminder"]},
				"done": {"type": "boolean"},
				"message": {"type": "string"},
				"args": {
					"type": "object",
					"required": ["minutes"],
					"properties": {
						"minutes": {"type": "integer", "minimum": 1}
					}
				}
			}
		}`,
		ToolFinish: `{
			"type": "object",
			"required": ["tool"],
			"properties": {
				"tool": {"enum": ["finish"]},
				"done": {"type": "boolean"},
				"message": {"type": "string"},
				"args": {"type": "object"}
			}
		}`,
	}

	for tool, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("invalid plan schema for %s: %v", tool, err))
		}
		toolSchemas[tool] = schema
	}
}

// Decode parses raw planner output into an Action. Any response that does
// not match one of the four documented shapes yields a *DecodeError; there
// is no silent defaulting.
func Decode(raw string) (*Action, error) {
	cleaned := stripFences(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, &DecodeError{Reason: "empty planner response"}
	}

	var action Action
	if err := json.Unmarshal([]byte(cleaned), &action); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	schema, ok := toolSchemas[action.Tool]
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown tool: %q", action.Tool)}
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("schema validation error: %v", err)}
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return nil, &DecodeError{Reason: strings.Join(reasons, "; ")}
	}

	if action.Done && action.Tool != ToolFinish {
		return nil, &DecodeError{Reason: fmt.Sprintf("done flag set on non-finish tool %q", action.Tool)}
	}

	return &action, nil
}

// stripFences removes a surrounding markdown code fence, which some models
// add despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
