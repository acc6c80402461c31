package mcpcore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
)

// Kind is the primitive type of a tool parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
)

func (k Kind) valid() bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean:
		return true
	}
	return false
}

// Param declares one named tool parameter.
type Param struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
	// Default is filled in when an optional parameter is absent.
	Default any
	// Minimum and Maximum bound number and integer parameters when set.
	Minimum *float64
	Maximum *float64
}

// Bound returns a pointer to v, for use in Param.Minimum and Param.Maximum.
func Bound(v float64) *float64 { return &v }

// Schema is the ordered parameter list of a tool.
type Schema []Param

// check reports whether the schema itself is well formed and returns a copy
// with defaults normalized to their parameter kinds.
func (s Schema) check() (Schema, error) {
	out := make(Schema, len(s))
	seen := make(map[string]bool, len(s))
	for i, p := range s {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter %d: name required", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("parameter %q declared twice", p.Name)
		}
		seen[p.Name] = true
		if !p.Kind.valid() {
			return nil, fmt.Errorf("parameter %q: unknown kind %q", p.Name, p.Kind)
		}
		if p.Default != nil {
			v, err := coerce(p, p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: bad default: %w", p.Name, err)
			}
			p.Default = v
		}
		out[i] = p
	}
	return out, nil
}

// Validate checks raw against the schema. On success it returns a new
// mapping holding every declared parameter that was supplied or has a
// default, converted to its canonical Go type: string, float64, int64 or
// bool. Parameters not declared in the schema are dropped. A nil value is
// treated as absent.
func (s Schema) Validate(raw map[string]any) (Arguments, error) {
	args := make(Arguments, len(s))
	for _, p := range s {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Default != nil {
				args[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, &ValidationError{Param: p.Name, Reason: ReasonMissingRequired}
			}
			continue
		}
		nv, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		args[p.Name] = nv
	}
	return args, nil
}

func coerce(p Param, v any) (any, error) {
	switch p.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, wrongType(p, v)
		}
		return s, nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, wrongType(p, v)
		}
		return b, nil
	case KindNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, wrongType(p, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ValidationError{Param: p.Name, Reason: ReasonOutOfRange, Detail: "not a finite number"}
		}
		if err := checkBounds(p, f); err != nil {
			return nil, err
		}
		return f, nil
	case KindInteger:
		n, err := toInt(p, v)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(p, float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("parameter %q: unknown kind %q", p.Name, p.Kind)
}

func checkBounds(p Param, f float64) error {
	if p.Minimum != nil && f < *p.Minimum {
		return &ValidationError{Param: p.Name, Reason: ReasonOutOfRange,
			Detail: fmt.Sprintf("%s is less than %s", formatFloat(f), formatFloat(*p.Minimum))}
	}
	if p.Maximum != nil && f > *p.Maximum {
		return &ValidationError{Param: p.Name, Reason: ReasonOutOfRange,
			Detail: fmt.Sprintf("%s is greater than %s", formatFloat(f), formatFloat(*p.Maximum))}
	}
	return nil
}

func wrongType(p Param, v any) error {
	return &ValidationError{
		Param:  p.Name,
		Reason: ReasonWrongType,
		Detail: fmt.Sprintf("want %s, got %s", p.Kind, typeName(v)),
	}
}

// typeName names v the way a JSON client would see it.
func typeName(v any) string {
	switch v := v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		if f, ok := toFloat(v); ok {
			if f == math.Trunc(f) {
				return "integer"
			}
			return "number"
		}
	}
	return fmt.Sprintf("%T", v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		// Overflow parses to ±Inf, which the callers reject as out of range.
		f, err := n.Float64()
		return f, err == nil || math.IsInf(f, 0)
	}
	return 0, false
}

func toInt(p Param, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, &ValidationError{Param: p.Name, Reason: ReasonOutOfRange, Detail: "does not fit in a 64-bit integer"}
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, &ValidationError{Param: p.Name, Reason: ReasonOutOfRange, Detail: "does not fit in a 64-bit integer"}
		}
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, wrongType(p, v)
	}
	if math.IsInf(f, 0) {
		return 0, &ValidationError{Param: p.Name, Reason: ReasonOutOfRange, Detail: "does not fit in a 64-bit integer"}
	}
	if f != math.Trunc(f) || math.IsNaN(f) {
		return 0, &ValidationError{Param: p.Name, Reason: ReasonWrongType,
			Detail: fmt.Sprintf("want integer, got %s", formatFloat(f))}
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is itself out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &ValidationError{Param: p.Name, Reason: ReasonOutOfRange, Detail: "does not fit in a 64-bit integer"}
	}
	return int64(f), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// JSONSchema renders the schema as a JSON Schema object, keeping parameter
// order.
func (s Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for _, p := range s {
		ps := &jsonschema.Schema{
			Type:        string(p.Kind),
			Description: p.Description,
			Default:     p.Default,
		}
		if p.Minimum != nil {
			ps.Minimum = json.Number(formatFloat(*p.Minimum))
		}
		if p.Maximum != nil {
			ps.Maximum = json.Number(formatFloat(*p.Maximum))
		}
		props.Set(p.Name, ps)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Arguments is a validated argument mapping as produced by Schema.Validate.
// Accessors return the zero value for absent parameters.
type Arguments map[string]any

// Has reports whether name is present.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Arguments) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (a Arguments) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}
