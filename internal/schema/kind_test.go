package schema

import (
	"encoding/json"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"int64", int64(7), KindInt},
		{"whole_float", 3.0, KindInt},
		{"fractional_float", 3.25, KindReal},
		{"json_number_int", json.Number("42"), KindInt},
		{"json_number_real", json.Number("4.2"), KindReal},
		{"int_string", "123", KindInt},
		{"negative_int_string", "-5", KindInt},
		{"real_string", "3.14", KindReal},
		{"leading_dot_real_string", ".5", KindReal},
		{"bool_string_mixed_case", "TrUe", KindBool},
		{"bool_string_false", "false", KindBool},
		{"text", "hello", KindText},
		{"empty_string", "", KindText},
		{"trailing_dot_not_real", "1.", KindText},
		{"object", map[string]any{"a": 1}, KindText},
		{"array", []any{1, 2}, KindText},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.in); got != tc.want {
				t.Fatalf("Classify(%#v)=%s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

// TestJoin_Monotonic checks that the join never lowers a kind.
//
// Edge cases:
//   - Null acts as identity on both sides.
//   - Text absorbs everything.
func TestJoin_Monotonic(t *testing.T) {
	t.Parallel()

	all := []Kind{KindNone, KindBool, KindInt, KindReal, KindText, KindNull}
	for _, a := range all {
		for _, b := range all {
			j := Join(a, b)
			if Join(j, a) != j || Join(j, b) != j {
				t.Fatalf("Join(%s,%s)=%s is not an upper bound", a, b, j)
			}
			if Join(a, b) != Join(b, a) {
				t.Fatalf("Join not commutative for %s,%s", a, b)
			}
		}
	}

	if got := Join(KindInt, KindReal); got != KindReal {
		t.Fatalf("Join(int,real)=%s, want real", got)
	}
	if got := Join(KindText, KindInt); got != KindText {
		t.Fatalf("Join(text,int)=%s, want text", got)
	}
	if got := Join(KindNull, KindBool); got != KindBool {
		t.Fatalf("Join(null,bool)=%s, want bool", got)
	}
}

func TestKind_Affinity(t *testing.T) {
	t.Parallel()

	cases := map[Kind]Affinity{
		KindNone: Text,
		KindBool: Integer,
		KindInt:  Integer,
		KindReal: Real,
		KindText: Text,
	}
	for k, want := range cases {
		if got := k.Affinity(); got != want {
			t.Fatalf("%s.Affinity()=%s, want %s", k, got, want)
		}
	}
}
