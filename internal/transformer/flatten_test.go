package transformer

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"jsonetl/pkg/records"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

// TestFlatten_DepthAndArrays covers the bounded expansion rules.
//
// Edge cases:
//   - Objects at depth 3 become JSON text.
//   - Arrays are serialized even at the top level.
//   - An empty nested object produces no keys.
func TestFlatten_DepthAndArrays(t *testing.T) {
	t.Parallel()

	in := decode(t, `{
		"id": 7,
		"price": 1.25,
		"user": {"name": "Ann", "addr": {"city": "Oslo", "zip": "0150"}},
		"tags": ["a", "b"],
		"empty": {},
		"none": null
	}`)

	got := Flatten(in, FlattenOptions{})
	want := records.Record{
		"id":        int64(7),
		"price":     1.25,
		"user.name": "Ann",
		"user.addr": `{"city":"Oslo","zip":"0150"}`,
		"tags":      `["a","b"]`,
		"none":      nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten mismatch:\n got=%#v\nwant=%#v", got, want)
	}
}

func TestFlatten_CustomSeparatorAndDepth(t *testing.T) {
	t.Parallel()

	in := decode(t, `{"a":{"b":{"c":{"d":1}}}}`)

	got := Flatten(in, FlattenOptions{MaxDepth: 3, Separator: "_"})
	want := records.Record{"a_b_c": `{"d":1}`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%#v want=%#v", got, want)
	}

	got = Flatten(in, FlattenOptions{MaxDepth: 1})
	want = records.Record{"a": `{"b":{"c":{"d":1}}}`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("depth 1: got=%#v want=%#v", got, want)
	}
}

// TestFlatten_IdempotentOnFlat checks that flat input passes through unchanged,
// including a second flatten of an already flattened record.
func TestFlatten_IdempotentOnFlat(t *testing.T) {
	t.Parallel()

	flat := map[string]any{"a": int64(1), "b": "x", "c": true, "d": nil, "e": 2.5}
	got := Flatten(flat, FlattenOptions{})
	if !reflect.DeepEqual(map[string]any(got), flat) {
		t.Fatalf("got=%#v want=%#v", got, flat)
	}

	nested := decode(t, `{"x":{"y":[1,2]},"z":1}`)
	once := Flatten(nested, FlattenOptions{})
	twice := Flatten(once, FlattenOptions{})
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent: once=%#v twice=%#v", once, twice)
	}
}

func TestFlatten_NumberConversion(t *testing.T) {
	t.Parallel()

	in := decode(t, `{"big": 12345678901234567890, "exp": 1e3, "neg": -4}`)
	got := Flatten(in, FlattenOptions{})

	if v, ok := got["neg"].(int64); !ok || v != -4 {
		t.Fatalf("neg=%#v", got["neg"])
	}
	if v, ok := got["exp"].(float64); !ok || v != 1000 {
		t.Fatalf("exp=%#v", got["exp"])
	}
	if _, ok := got["big"].(float64); !ok {
		t.Fatalf("big=%#v, want float64 fallback", got["big"])
	}
}

func TestRowPool_Reuse(t *testing.T) {
	r := GetRow(3)
	r.V[0] = "x"
	r.Index = 9
	r.Free()

	r2 := GetRow(2)
	if len(r2.V) != 2 {
		t.Fatalf("len=%d, want 2", len(r2.V))
	}
	for i, v := range r2.V {
		if v != nil {
			t.Fatalf("V[%d]=%v, want nil", i, v)
		}
	}
	if r2.Index != 0 {
		t.Fatalf("Index=%d, want 0", r2.Index)
	}
	r2.Drop()
	if r2.V != nil {
		t.Fatalf("Drop did not release V")
	}
}
