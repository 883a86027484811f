// Package profile holds the student, mentor and internship models consumed by
// the matching engine, and the tokenizer that turns delimited attribute text
// (skills, interests, expertise areas) into comparable token sets.
package profile

import (
	"encoding/json"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/unicode/norm"
)

// Delimiter separates attribute values in their stored text form.
const Delimiter = ","

// Tokens is a normalized, duplicate-free set of attribute values. The zero
// value is an empty set and is safe to use.
type Tokens struct {
	set mapset.Set[string]
}

// Tokenize splits raw on commas, trims and lower-cases every piece, drops
// blanks and collapses duplicates. It never fails: blank input yields an
// empty set.
func Tokenize(raw string) Tokens {
	if strings.TrimSpace(raw) == "" {
		return Tokens{}
	}
	return FromList(strings.Split(raw, Delimiter))
}

// FromList normalizes an already split list of values.
func FromList(values []string) Tokens {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, v := range values {
		if tok := normalize(v); tok != "" {
			set.Add(tok)
		}
	}
	return Tokens{set: set}
}

// NormalizeToken applies the tokenizer's per-value normalization to a single
// value, e.g. a student's major.
func NormalizeToken(v string) string {
	return normalize(v)
}

func normalize(v string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(v)))
}

// Len returns the number of distinct tokens.
func (t Tokens) Len() int {
	if t.set == nil {
		return 0
	}
	return t.set.Cardinality()
}

// Contains reports whether tok (already normalized) is in the set.
func (t Tokens) Contains(tok string) bool {
	if t.set == nil {
		return false
	}
	return t.set.Contains(tok)
}

// Intersect returns the tokens present in both sets.
func (t Tokens) Intersect(other Tokens) Tokens {
	if t.Len() == 0 || other.Len() == 0 {
		return Tokens{}
	}
	return Tokens{set: t.set.Intersect(other.set)}
}

// Sorted returns the tokens in lexical order.
func (t Tokens) Sorted() []string {
	if t.set == nil {
		return []string{}
	}
	out := t.set.ToSlice()
	sort.Strings(out)
	return out
}

// String returns the stored text form: sorted tokens joined by the delimiter.
func (t Tokens) String() string {
	return strings.Join(t.Sorted(), Delimiter)
}

// MarshalJSON encodes the set as a sorted array.
func (t Tokens) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Sorted())
}

// UnmarshalJSON decodes an array of values, normalizing each of them.
func (t *Tokens) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*t = FromList(values)
	return nil
}
