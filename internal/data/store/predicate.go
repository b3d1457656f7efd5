package store

import (
	"fmt"
	"reflect"
	"strings"
)

type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLike    Op = "LIKE"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

// Cond is a single column comparison.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func (c Cond) String() string {
	switch c.Op {
	case OpIsNull, OpNotNull:
		return fmt.Sprintf("%s %s", c.Column, c.Op)
	default:
		return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Value)
	}
}

// Predicate is a conjunction of conditions. A nil Predicate matches every row.
type Predicate []Cond

// All matches every row.
func All() Predicate { return nil }

func Where(conds ...Cond) Predicate { return Predicate(conds) }

func (p Predicate) And(conds ...Cond) Predicate {
	out := make(Predicate, 0, len(p)+len(conds))
	out = append(out, p...)
	return append(out, conds...)
}

func (p Predicate) String() string {
	if len(p) == 0 {
		return "<all>"
	}
	parts := make([]string, 0, len(p))
	for _, c := range p {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " AND ")
}

func Eq(column string, value any) Cond   { return Cond{Column: column, Op: OpEq, Value: value} }
func Ne(column string, value any) Cond   { return Cond{Column: column, Op: OpNe, Value: value} }
func Like(column, pattern string) Cond   { return Cond{Column: column, Op: OpLike, Value: pattern} }
func IsNull(column string) Cond          { return Cond{Column: column, Op: OpIsNull} }
func NotNull(column string) Cond         { return Cond{Column: column, Op: OpNotNull} }
func OwnedBy(cartID int64) Predicate     { return Where(Eq("cart_id", cartID)) }
func Unowned() Predicate                 { return Where(IsNull("cart_id")) }
func NameLike(pattern string) Predicate  { return Where(Like("name", pattern)) }
func LabelLike(pattern string) Predicate { return Where(Like("label", pattern)) }

// Validate checks every column against known and every op against the
// supported set. = and <> reject a nil value; use IsNull or NotNull.
func (p Predicate) Validate(known func(column string) bool) error {
	for _, c := range p {
		if !known(c.Column) {
			return fmt.Errorf("unknown column %q", c.Column)
		}
		switch c.Op {
		case OpEq, OpNe:
			if isNil(c.Value) {
				return fmt.Errorf("%s on %q with a nil value; use IsNull or NotNull", c.Op, c.Column)
			}
		case OpLike:
			if _, ok := c.Value.(string); !ok {
				return fmt.Errorf("LIKE on %q needs a string pattern", c.Column)
			}
		case OpIsNull, OpNotNull:
		default:
			return fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return nil
}

// Match evaluates p against a row exposing its columns through get.
func (p Predicate) Match(get func(column string) (any, bool)) bool {
	for _, c := range p {
		v, ok := get(c.Column)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if !equalValues(v, c.Value) {
				return false
			}
		case OpNe:
			if v == nil || c.Value == nil || equalValues(v, c.Value) {
				return false
			}
		case OpLike:
			s, ok := v.(string)
			pattern, _ := c.Value.(string)
			if !ok || !likeMatch(s, pattern) {
				return false
			}
		case OpIsNull:
			if v != nil {
				return false
			}
		case OpNotNull:
			if v == nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// equalValues follows SQL semantics: NULL equals nothing.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if ai, ok := asInt64(a); ok {
		bi, ok := asInt64(b)
		return ok && ai == bi
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case *int64:
		if n == nil {
			return 0, false
		}
		return *n, true
	default:
		return 0, false
	}
}

// likeMatch implements LIKE with % and _ wildcards. Matching is
// case-sensitive and there is no escape character, in every store.
func likeMatch(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	var match func(i, j int) bool
	match = func(i, j int) bool {
		for j < len(pr) {
			switch pr[j] {
			case '%':
				for j < len(pr) && pr[j] == '%' {
					j++
				}
				if j == len(pr) {
					return true
				}
				for k := i; k <= len(sr); k++ {
					if match(k, j) {
						return true
					}
				}
				return false
			case '_':
				if i >= len(sr) {
					return false
				}
			default:
				if i >= len(sr) || sr[i] != pr[j] {
					return false
				}
			}
			i++
			j++
		}
		return i == len(sr)
	}
	return match(0, 0)
}
