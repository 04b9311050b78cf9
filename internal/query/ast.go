// Package query implements the dynamic playlist filter language: a small
// grammar over song fields, parsed into an AST and pretty-printed back to
// text. The printer is the parser's inverse: parse(print(x)) == x for every
// well-formed tree this package can produce.
package query

import "fmt"

// Fields is the fixed set of field names the grammar allows as a value.
var Fields = map[string]bool{
	"title":        true,
	"artist":       true,
	"album":        true,
	"album_artist": true,
	"genre":        true,
	"year":         true,
}

// LogicOp is the connective joining two clauses in a Compound.
type LogicOp string

const (
	And LogicOp = "AND"
	Or  LogicOp = "OR"
)

// Operator is one of the comparison/membership operators a Leaf may use.
type Operator string

const (
	OpEq           Operator = "="
	OpNeq          Operator = "!="
	OpEqCI         Operator = "?="
	OpEqFuzzy      Operator = "*="
	OpGt           Operator = ">"
	OpGte          Operator = ">="
	OpLt           Operator = "<"
	OpLte          Operator = "<="
	OpMatch        Operator = "~"
	OpNotMatch     Operator = "!~"
	OpMatchCI      Operator = "?~"
	OpMatchFuzzy   Operator = "*~"
	OpIn           Operator = "IN"
	OpNotIn        Operator = "NOT IN"
	OpContains     Operator = "CONTAINS"
	OpContainsNot  Operator = "CONTAINSNOT"
	OpContainsAll  Operator = "CONTAINSALL"
	OpContainsAny  Operator = "CONTAINSANY"
	OpContainsNone Operator = "CONTAINSNONE"
	OpInside       Operator = "INSIDE"
	OpNotInside    Operator = "NOTINSIDE"
	OpAllInside    Operator = "ALLINSIDE"
	OpAnyInside    Operator = "ANYINSIDE"
	OpNoneInside   Operator = "NONEINSIDE"
)

// allOperators lists every operator, longest/most-specific first (e.g.
// "INSIDE" before "IN", "CONTAINSALL" before "CONTAINS"). Nothing reads
// it: the lexer's Operator rule in lexer.go carries its own ordering, and
// the parser maps tokens through normalizeOperator.
var allOperators = []Operator{
	OpNotIn,
	OpNotInside, OpAllInside, OpAnyInside, OpNoneInside, OpInside,
	OpContainsNone, OpContainsAll, OpContainsAny, OpContainsNot, OpContains,
	OpNeq, OpEqCI, OpEqFuzzy, OpGte, OpLte,
	OpNotMatch, OpMatchCI, OpMatchFuzzy,
	OpIn,
	OpEq, OpGt, OpLt, OpMatch,
}

// Clause is a node of the query tree: either a Compound or a Leaf.
type Clause interface {
	clause()
}

// Compound is a strictly binary AND/OR node. It is always parenthesized
// when printed.
type Compound struct {
	Left  Clause
	Op    LogicOp
	Right Clause
}

func (*Compound) clause() {}

// Leaf is a single comparison between two values.
type Leaf struct {
	Left  Value
	Op    Operator
	Right Value
}

func (*Leaf) clause() {}

// ValueKind discriminates the Value union.
type ValueKind int

const (
	KindField ValueKind = iota
	KindString
	KindInt
	KindSet
)

// Value is one leaf operand: a string, int, field reference, or set of
// values.
type Value struct {
	Kind  ValueKind
	Field string
	Str   string
	Int   int
	Set   []Value
}

// FieldValue constructs a field-reference value, panicking if name is not
// one of the recognized fields — callers build queries from trusted
// constants, not raw user field strings.
func FieldValue(name string) Value {
	if !Fields[name] {
		panic(fmt.Sprintf("query: unknown field %q", name))
	}
	return Value{Kind: KindField, Field: name}
}

// StringValue constructs a string literal value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue constructs an integer literal value.
func IntValue(n int) Value { return Value{Kind: KindInt, Int: n} }

// SetValue constructs a set literal value.
func SetValue(vs ...Value) Value { return Value{Kind: KindSet, Set: vs} }
