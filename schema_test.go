package mcpcore

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func calcSchema() Schema {
	s, err := Schema{
		{Name: "a", Kind: KindNumber, Required: true},
		{Name: "n", Kind: KindInteger, Minimum: Bound(0), Maximum: Bound(170)},
		{Name: "op", Kind: KindString, Default: "add"},
		{Name: "verbose", Kind: KindBoolean},
		{Name: "limit", Kind: KindInteger, Default: 10},
	}.check()
	if err != nil {
		panic(err)
	}
	return s
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Arguments
	}{
		{
			name: "defaults",
			raw:  map[string]any{"a": 1.5},
			want: Arguments{"a": 1.5, "op": "add", "limit": int64(10)},
		},
		{
			name: "all present",
			raw:  map[string]any{"a": 2.0, "n": 5.0, "op": "mul", "verbose": true, "limit": 3},
			want: Arguments{"a": 2.0, "n": int64(5), "op": "mul", "verbose": true, "limit": int64(3)},
		},
		{
			name: "unknown parameters dropped",
			raw:  map[string]any{"a": 1.0, "extra": "x"},
			want: Arguments{"a": 1.0, "op": "add", "limit": int64(10)},
		},
		{
			name: "null is absent",
			raw:  map[string]any{"a": 1.0, "op": nil, "n": nil},
			want: Arguments{"a": 1.0, "op": "add", "limit": int64(10)},
		},
		{
			name: "integers accepted as numbers",
			raw:  map[string]any{"a": 7},
			want: Arguments{"a": 7.0, "op": "add", "limit": int64(10)},
		},
		{
			name: "json numbers",
			raw:  map[string]any{"a": json.Number("2.5"), "n": json.Number("12")},
			want: Arguments{"a": 2.5, "n": int64(12), "op": "add", "limit": int64(10)},
		},
		{
			name: "bounds are inclusive",
			raw:  map[string]any{"a": 0.0, "n": 170.0},
			want: Arguments{"a": 0.0, "n": int64(170), "op": "add", "limit": int64(10)},
		},
	}
	s := calcSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Validate(tt.raw)
			if err != nil {
				t.Fatalf("Validate(%v): %v", tt.raw, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate(%v) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]any
		reason Reason
		msg    string
	}{
		{"nil arguments", nil, ReasonMissingRequired, `missing required parameter "a"`},
		{"required null", map[string]any{"a": nil}, ReasonMissingRequired, `missing required parameter "a"`},
		{"string for number", map[string]any{"a": "5"}, ReasonWrongType, `parameter "a" has wrong type: want number, got string`},
		{"bool for number", map[string]any{"a": true}, ReasonWrongType, `parameter "a" has wrong type: want number, got boolean`},
		{"number for string", map[string]any{"a": 1.0, "op": 3.0}, ReasonWrongType, `parameter "op" has wrong type: want string, got integer`},
		{"array for boolean", map[string]any{"a": 1.0, "verbose": []any{true}}, ReasonWrongType, `parameter "verbose" has wrong type: want boolean, got array`},
		{"object for integer", map[string]any{"a": 1.0, "n": map[string]any{}}, ReasonWrongType, `parameter "n" has wrong type: want integer, got object`},
		{"fraction for integer", map[string]any{"a": 1.0, "n": 2.5}, ReasonWrongType, `parameter "n" has wrong type: want integer, got 2.5`},
		{"below minimum", map[string]any{"a": 1.0, "n": -1.0}, ReasonOutOfRange, `parameter "n" out of range: -1 is less than 0`},
		{"above maximum", map[string]any{"a": 1.0, "n": 171}, ReasonOutOfRange, `parameter "n" out of range: 171 is greater than 170`},
		{"too large for int64", map[string]any{"a": 1.0, "limit": 1e19}, ReasonOutOfRange, `parameter "limit" out of range: does not fit in a 64-bit integer`},
		{"uint64 overflow", map[string]any{"a": 1.0, "limit": uint64(math.MaxUint64)}, ReasonOutOfRange, `parameter "limit" out of range: does not fit in a 64-bit integer`},
		{"infinity", map[string]any{"a": math.Inf(1)}, ReasonOutOfRange, `parameter "a" out of range: not a finite number`},
		{"json number overflow", map[string]any{"a": json.Number("1e400")}, ReasonOutOfRange, `parameter "a" out of range: not a finite number`},
		{"json integer overflow", map[string]any{"a": 1.0, "limit": json.Number("1e400")}, ReasonOutOfRange, `parameter "limit" out of range: does not fit in a 64-bit integer`},
	}
	s := calcSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(tt.raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate(%v) = %v, want *ValidationError", tt.raw, err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", verr.Reason, tt.reason)
			}
			if err.Error() != tt.msg {
				t.Errorf("message = %q, want %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestValidateDoesNotModifyInput(t *testing.T) {
	raw := map[string]any{"a": 3, "extra": true}
	if _, err := calcSchema().Validate(raw); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"a": 3, "extra": true}, raw); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}

func TestSchemaCheck(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		errSub string
	}{
		{"empty name", Schema{{Kind: KindString}}, "name required"},
		{"duplicate", Schema{{Name: "x", Kind: KindString}, {Name: "x", Kind: KindNumber}}, `"x" declared twice`},
		{"unknown kind", Schema{{Name: "x", Kind: "date"}}, `unknown kind "date"`},
		{"bad default", Schema{{Name: "x", Kind: KindInteger, Default: "ten"}}, "bad default"},
		{"default out of range", Schema{{Name: "x", Kind: KindNumber, Default: 5, Maximum: Bound(1)}}, "bad default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.schema.check()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("check() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}

	if _, err := Schema(nil).check(); err != nil {
		t.Errorf("empty schema: %v", err)
	}
}

func TestJSONSchema(t *testing.T) {
	js := calcSchema().JSONSchema()
	if js.Type != "object" {
		t.Errorf("Type = %q, want object", js.Type)
	}
	if diff := cmp.Diff([]string{"a"}, js.Required); diff != "" {
		t.Errorf("Required mismatch (-want +got):\n%s", diff)
	}
	var names []string
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	if diff := cmp.Diff([]string{"a", "n", "op", "verbose", "limit"}, names); diff != "" {
		t.Errorf("property order mismatch (-want +got):\n%s", diff)
	}
	n, _ := js.Properties.Get("n")
	if n.Type != "integer" || n.Minimum != "0" || n.Maximum != "170" {
		t.Errorf("n = %+v", n)
	}
	op, _ := js.Properties.Get("op")
	if op.Default != "add" {
		t.Errorf("op default = %v, want add", op.Default)
	}

	data, err := json.Marshal(js)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "object" || len(decoded.Properties) != 5 || len(decoded.Required) != 1 {
		t.Errorf("marshaled schema = %s", data)
	}
}

func TestArguments(t *testing.T) {
	args := Arguments{"s": "x", "f": 1.5, "i": int64(3), "b": true}
	if args.String("s") != "x" || args.String("missing") != "" {
		t.Error("String")
	}
	if args.Float("f") != 1.5 || args.Float("i") != 3 {
		t.Error("Float")
	}
	if args.Int("i") != 3 || args.Int("f") != 1 {
		t.Error("Int")
	}
	if !args.Bool("b") || args.Bool("s") {
		t.Error("Bool")
	}
	if !args.Has("s") || args.Has("missing") {
		t.Error("Has")
	}
}
