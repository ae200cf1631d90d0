package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/replikv/replikv/internal/attribute"
)

// Attributes resolves attribute names to their projections for evaluation.
type Attributes map[string]attribute.Attribute

// Match reports whether record satisfies node, resolving leaf attribute
// names through attrs. An unknown attribute name never matches.
func Match(node Node, record any, attrs Attributes) bool {
	switch node.Kind {
	case KindAnd:
		for _, c := range node.Children {
			if !Match(c, record, attrs) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range node.Children {
			if Match(c, record, attrs) {
				return true
			}
		}
		return len(node.Children) == 0
	case KindNot:
		if len(node.Children) == 0 {
			return true
		}
		return !Match(node.Children[0], record, attrs)
	default:
		return matchLeaf(node, record, attrs)
	}
}

func matchLeaf(node Node, record any, attrs Attributes) bool {
	attr, ok := attrs[node.Attribute]
	if !ok {
		return false
	}
	values, present := attr.Get(record)

	switch node.Kind {
	case KindHas:
		return present && len(values) > 0
	case KindEqual:
		return present && anyEquals(values, node.Value)
	case KindNotEqual:
		return !present || !anyEquals(values, node.Value)
	case KindIn:
		if !present {
			return false
		}
		for _, v := range values {
			for _, want := range node.Values {
				if equalValue(v, want) {
					return true
				}
			}
		}
		return false
	case KindGT, KindGTE, KindLT, KindLTE:
		if !present || len(values) == 0 {
			return false
		}
		return compareMatch(node.Kind, values[0], node.Value)
	case KindBetween:
		if !present || len(values) == 0 {
			return false
		}
		return compareValue(values[0], node.Low) >= 0 && compareValue(values[0], node.High) <= 0
	case KindLike:
		if !present || len(values) == 0 {
			return false
		}
		return likeMatch(fmt.Sprintf("%v", values[0]), fmt.Sprintf("%v", node.Value))
	case KindRegex:
		if !present || len(values) == 0 {
			return false
		}
		pattern, _ := node.Value.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprintf("%v", values[0]))
	case KindContains:
		if !present {
			return false
		}
		needle := fmt.Sprintf("%v", node.Value)
		for _, v := range values {
			if strings.Contains(fmt.Sprintf("%v", v), needle) {
				return true
			}
		}
		return false
	case KindContainsAll:
		if !present {
			return false
		}
		for _, want := range node.Values {
			if !anyEquals(values, want) {
				return false
			}
		}
		return true
	case KindContainsAny:
		if !present {
			return false
		}
		for _, want := range node.Values {
			if anyEquals(values, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func anyEquals(values []any, want any) bool {
	for _, v := range values {
		if equalValue(v, want) {
			return true
		}
	}
	return false
}

func equalValue(a, b any) bool {
	return compareValue(a, b) == 0
}

// compareValue orders numeric types by magnitude and falls back to string
// comparison for everything else.
func compareValue(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func compareMatch(kind Kind, value, operand any) bool {
	c := compareValue(value, operand)
	switch kind {
	case KindGT:
		return c > 0
	case KindGTE:
		return c >= 0
	case KindLT:
		return c < 0
	case KindLTE:
		return c <= 0
	default:
		return false
	}
}

// likeMatch implements SQL-style LIKE with % and _ wildcards.
func likeMatch(text, pattern string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// Canonicalize produces a structurally-stable string for node, sorting
// commutative logical children and "in"/"containsAny"/"containsAll" value
// lists so equivalent queries hash identically regardless of construction
// order. Used by the standing-query index for structural-equality matching.
func Canonicalize(node Node) string {
	var b strings.Builder
	canonicalizeInto(&b, node)
	return b.String()
}

func canonicalizeInto(b *strings.Builder, node Node) {
	b.WriteString(string(node.Kind))
	b.WriteString("(")
	if node.Kind.isLogical() {
		children := append([]Node(nil), node.Children...)
		rendered := make([]string, len(children))
		for i, c := range children {
			rendered[i] = Canonicalize(c)
		}
		if node.Kind == KindAnd || node.Kind == KindOr {
			sort.Strings(rendered)
		}
		b.WriteString(strings.Join(rendered, ","))
	} else {
		fmt.Fprintf(b, "attr=%s;value=%v;low=%v;high=%v;values=%s",
			node.Attribute, node.Value, node.Low, node.High, canonicalValues(node.Values))
	}
	b.WriteString(")")
}

func canonicalValues(values []any) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = fmt.Sprintf("%v", v)
	}
	sort.Strings(strs)
	return strings.Join(strs, ",")
}
