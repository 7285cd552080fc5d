package json

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

var taggedParser = runParser(func(ctx context.Context, r *strings.Reader, emit EmitFunc, o Options) (Stats, error) {
	return ParseTagged(ctx, r, emit, o)
})

func TestParseTagged_RoundTrip(t *testing.T) {
	t.Parallel()

	st, err, objs, warns := collect(t, taggedParser, `{"M":{"age":{"N":"30"},"name":{"S":"Ann"}}}`+"\n")
	if err != nil {
		t.Fatalf("err=%v warns=%v", err, warns)
	}
	if st.Records != 1 {
		t.Fatalf("records=%d, want 1", st.Records)
	}
	want := map[string]any{"age": int64(30), "name": "Ann"}
	if !reflect.DeepEqual(objs[0], want) {
		t.Fatalf("got=%#v want=%#v", objs[0], want)
	}
}

// TestUnmarshalTagged covers every tag and the envelope rules.
//
// Edge cases:
//   - "Item" and "NewImage" envelopes are unwrapped.
//   - A bare item whose only attribute is a map is not mistaken for an envelope.
//   - Unknown tags pass the attribute value through unchanged.
//   - Numbers without '.' that overflow int64 fall back to float64.
func TestUnmarshalTagged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "item_envelope_all_scalars",
			in: map[string]any{"Item": map[string]any{
				"s":  map[string]any{"S": "x"},
				"i":  map[string]any{"N": "-12"},
				"f":  map[string]any{"N": "1.5"},
				"b":  map[string]any{"BOOL": true},
				"n":  map[string]any{"NULL": true},
				"bn": map[string]any{"N": "99999999999999999999"},
			}},
			want: map[string]any{"s": "x", "i": int64(-12), "f": 1.5, "b": true, "n": nil, "bn": 1e20},
		},
		{
			name: "new_image_with_collections",
			in: map[string]any{"NewImage": map[string]any{
				"l":  map[string]any{"L": []any{map[string]any{"S": "a"}, map[string]any{"N": "2"}}},
				"ss": map[string]any{"SS": []any{"a", "b"}},
				"ns": map[string]any{"NS": []any{"1", "2.5"}},
				"bs": map[string]any{"BS": []any{"AQI="}},
				"m":  map[string]any{"M": map[string]any{"k": map[string]any{"S": "v"}}},
			}},
			want: map[string]any{
				"l":  []any{"a", int64(2)},
				"ss": []any{"a", "b"},
				"ns": []any{int64(1), 2.5},
				"bs": []any{"AQI="},
				"m":  map[string]any{"k": "v"},
			},
		},
		{
			name: "bare_item_single_map_attribute",
			in: map[string]any{
				"info": map[string]any{"M": map[string]any{"a": map[string]any{"S": "x"}}},
			},
			want: map[string]any{"info": map[string]any{"a": "x"}},
		},
		{
			name: "bare_item_single_scalar_attribute",
			in:   map[string]any{"age": map[string]any{"N": "7"}},
			want: map[string]any{"age": int64(7)},
		},
		{
			name: "unknown_tag_passthrough",
			in:   map[string]any{"x": map[string]any{"WEIRD": "v"}, "y": "plain"},
			want: map[string]any{"x": map[string]any{"WEIRD": "v"}, "y": "plain"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := UnmarshalTagged(tc.in)
			if err != nil {
				t.Fatalf("UnmarshalTagged() err=%v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got=%#v\nwant=%#v", got, tc.want)
			}
		})
	}
}

// TestParseTagged_ConversionFailureIsWarning checks that a bad attribute skips
// only its own line.
func TestParseTagged_ConversionFailureIsWarning(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"Item":{"n":{"N":"abc"}}}`,
		`{"Item":{"n":{"N":"5"}}}`,
		`{"Item":{"b":{"BOOL":"maybe"}}}`,
	}, "\n")

	st, err, objs, warns := collect(t, taggedParser, input)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if st.Records != 1 || len(objs) != 1 {
		t.Fatalf("records=%d, want 1", st.Records)
	}
	if len(warns) != 2 || !strings.HasPrefix(warns[0], "line=1 ") || !strings.HasPrefix(warns[1], "line=3 ") {
		t.Fatalf("warnings=%v, want lines 1 and 3", warns)
	}
}
