package provider

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// BuildJSONSchemaOption reflects a Go value's type into a JSON Schema
// document and wraps it as a JSONSchemaOption — the structured-response
// knob (§3) and, via ToolSpec.Function.Parameters / Claude's input_schema /
// Gemini's functionDeclarations, the tool-parameter schema translators
// forward upstream unchanged. Lets a caller register a tool or a structured
// response shape from a native Go struct instead of hand-writing JSON
// Schema.
func BuildJSONSchemaOption(name string, shape any) (*JSONSchemaOption, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(shape)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "reflect JSON schema for "+name, err)
	}

	return &JSONSchemaOption{Name: name, Value: raw}, nil
}

// ToolSpecFor builds a ToolSpec whose parameters are reflected from shape,
// for callers that want to register a built-in tool from a Go struct.
func ToolSpecFor(name, description string, shape any) (ToolSpec, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(shape)

	raw, err := json.Marshal(schema)
	if err != nil {
		return ToolSpec{}, domainerr.Wrap(domainerr.InternalError, "reflect JSON schema for tool "+name, err)
	}

	spec := ToolSpec{Type: "function"}
	spec.Function.Name = name
	spec.Function.Description = description
	spec.Function.Parameters = raw
	return spec, nil
}
