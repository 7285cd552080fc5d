// Package schema infers a relational column set from flattened records.
//
// Values are classified into a closed set of kinds and each column's observed
// kinds are reduced with a lattice join:
//
//	Bool ⊑ Int ⊑ Real ⊑ Text
//
// The join is the maximum along that chain, so adding evidence to a column can
// only promote its affinity and never demote it.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Kind is the scalar classification of one observed value.
type Kind uint8

const (
	// KindNone is the lattice bottom: no non-null evidence seen yet.
	KindNone Kind = iota
	KindBool
	KindInt
	KindReal
	KindText

	// KindNull marks an explicit null. It carries nullability evidence only and
	// never participates in the join.
	KindNull Kind = 0xFF
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Join returns the least upper bound of a and b. Null is the identity.
func Join(a, b Kind) Kind {
	if a == KindNull {
		a = KindNone
	}
	if b == KindNull {
		b = KindNone
	}
	if a > KindText || b > KindText {
		return KindText
	}
	if a > b {
		return a
	}
	return b
}

// Affinity is the coarse relational type assigned to a column.
type Affinity string

const (
	Text    Affinity = "TEXT"
	Integer Affinity = "INTEGER"
	Real    Affinity = "REAL"
)

// Valid reports whether a is one of the supported affinities.
func (a Affinity) Valid() bool {
	switch a {
	case Text, Integer, Real:
		return true
	}
	return false
}

// Affinity reduces a joined kind. Booleans are stored as 0/1 and an empty
// evidence set falls back to TEXT.
func (k Kind) Affinity() Affinity {
	switch k {
	case KindBool, KindInt:
		return Integer
	case KindReal:
		return Real
	default:
		return Text
	}
}

var (
	intPattern  = regexp.MustCompile(`^-?\d+$`)
	realPattern = regexp.MustCompile(`^-?\d*\.\d+$`)
)

// Classify maps any decoded value to its Kind. It is total: anything it does
// not recognize is text.
func Classify(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32:
		return classifyFloat(float64(t))
	case float64:
		return classifyFloat(t)
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInt
		}
		f, err := t.Float64()
		if err != nil {
			return KindText
		}
		return classifyFloat(f)
	case string:
		return classifyString(t)
	default:
		return KindText
	}
}

func classifyFloat(f float64) Kind {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return KindReal
	}
	if f == math.Trunc(f) {
		return KindInt
	}
	return KindReal
}

func classifyString(s string) Kind {
	switch {
	case intPattern.MatchString(s):
		return KindInt
	case realPattern.MatchString(s):
		return KindReal
	case strings.EqualFold(s, "true"), strings.EqualFold(s, "false"):
		return KindBool
	default:
		return KindText
	}
}
