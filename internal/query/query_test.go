package query

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, s string) Clause {
	t.Helper()
	c, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return c
}

func TestRoundtrip(t *testing.T) {
	cases := []Clause{
		&Leaf{Left: FieldValue("title"), Op: OpEq, Right: StringValue(`hello "world"`)},
		&Leaf{Left: FieldValue("year"), Op: OpGte, Right: IntValue(1999)},
		&Leaf{Left: FieldValue("genre"), Op: OpIn, Right: SetValue(StringValue("rock"), StringValue("jazz"))},
		&Compound{
			Left:  &Leaf{Left: FieldValue("artist"), Op: OpEq, Right: StringValue("Boards of Canada")},
			Op:    And,
			Right: &Leaf{Left: FieldValue("year"), Op: OpGt, Right: IntValue(1995)},
		},
		&Leaf{Left: FieldValue("album"), Op: OpNotIn, Right: SetValue()},
		&Leaf{Left: FieldValue("genre"), Op: OpContainsAny, Right: SetValue(StringValue("a\\b"), IntValue(-3))},
	}

	for _, original := range cases {
		printed := Print(original)
		reparsed, err := Parse(printed)
		if err != nil {
			t.Fatalf("Parse(Print(%v)) = %v, printed=%q", original, err, printed)
		}
		if !reflect.DeepEqual(original, reparsed) {
			t.Fatalf("roundtrip mismatch: printed=%q\n  original=%#v\n  reparsed=%#v", printed, original, reparsed)
		}
	}
}

func TestParseCompoundNesting(t *testing.T) {
	c := mustParse(t, `((title = "a" AND album = "b") OR year > 2000)`)
	top, ok := c.(*Compound)
	if !ok || top.Op != Or {
		t.Fatalf("expected top-level OR compound, got %#v", c)
	}
	inner, ok := top.Left.(*Compound)
	if !ok || inner.Op != And {
		t.Fatalf("expected nested AND compound, got %#v", top.Left)
	}
}

func TestParseUnknownFieldFails(t *testing.T) {
	if _, err := Parse(`bogus = "x"`); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseUnbalancedParensFails(t *testing.T) {
	if _, err := Parse(`(title = "a" AND album = "b"`); err == nil {
		t.Fatalf("expected error for missing closing paren")
	}
}

func TestInsideVsInDisambiguation(t *testing.T) {
	c := mustParse(t, `genre INSIDE ["rock"]`)
	leaf, ok := c.(*Leaf)
	if !ok || leaf.Op != OpInside {
		t.Fatalf("expected INSIDE operator, got %#v", c)
	}

	c2 := mustParse(t, `genre IN ["rock"]`)
	leaf2, ok := c2.(*Leaf)
	if !ok || leaf2.Op != OpIn {
		t.Fatalf("expected IN operator, got %#v", c2)
	}
}

func TestNotInOperator(t *testing.T) {
	c := mustParse(t, `genre NOT IN ["pop"]`)
	leaf, ok := c.(*Leaf)
	if !ok || leaf.Op != OpNotIn {
		t.Fatalf("expected NOT IN operator, got %#v", c)
	}
}

func TestBareLeafAtTopLevel(t *testing.T) {
	c := mustParse(t, `title = "x"`)
	if _, ok := c.(*Leaf); !ok {
		t.Fatalf("expected bare leaf to parse at top level, got %#v", c)
	}
}
