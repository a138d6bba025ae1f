package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type ParamType string

const (
	String  ParamType = "string"
	Integer ParamType = "integer"
	Number  ParamType = "number"
	Boolean ParamType = "boolean"
)

type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Spec is the declaration of a tool: its name and the arguments it accepts.
type Spec struct {
	Name        string
	Description string
	Params      []Param
}

// Param returns the declared parameter with the given name.
func (s *Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// JSONSchema renders the parameter list as a JSON Schema object.
func (s *Spec) JSONSchema() map[string]any {
	props := map[string]any{}
	required := []any{}
	for _, p := range s.Params {
		prop := map[string]any{"type": string(paramType(p.Type))}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Validate checks required arguments first, then argument types.
func (s *Spec) Validate(args map[string]any) error {
	schema, err := s.compile()
	if err != nil {
		return err
	}
	return s.validate(schema, args)
}

func (s *Spec) validate(schema *jsonschema.Schema, args map[string]any) error {
	for _, p := range s.Params {
		if !p.Required {
			continue
		}
		v, ok := args[p.Name]
		if !ok || v == nil {
			return &MissingArgumentError{Tool: s.Name, Param: p.Name}
		}
		if str, isStr := v.(string); isStr && str == "" {
			return &MissingArgumentError{Tool: s.Name, Param: p.Name}
		}
	}
	if err := schema.Validate(normalize(args)); err != nil {
		return &InvalidArgumentError{Tool: s.Name, Reason: firstCause(err)}
	}
	return nil
}

func (s *Spec) compile() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("tool %s: schema: %w", s.Name, err)
	}
	schema, err := jsonschema.CompileString("sapa://tools/"+s.Name+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", s.Name, err)
	}
	return schema, nil
}

func (s *Spec) clone() *Spec {
	return &Spec{
		Name:        s.Name,
		Description: s.Description,
		Params:      append([]Param(nil), s.Params...),
	}
}

func paramType(t ParamType) ParamType {
	switch t {
	case Integer, Number, Boolean:
		return t
	default:
		return String
	}
}

// normalize round-trips args through JSON so Go numeric types validate the
// way decoded JSON does.
func normalize(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return args
	}
	return out
}

func firstCause(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation != "" {
		return verr.InstanceLocation + ": " + verr.Message
	}
	return verr.Message
}
