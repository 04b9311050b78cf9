package query

import (
	"strconv"
	"strings"
)

// Print renders a Clause back to its canonical textual form. It is the
// parser's inverse: Parse(Print(c)) always reproduces a tree equal to c.
func Print(c Clause) string {
	switch n := c.(type) {
	case *Compound:
		return "(" + Print(n.Left) + " " + string(n.Op) + " " + Print(n.Right) + ")"
	case *Leaf:
		return printValue(n.Left) + " " + string(n.Op) + " " + printValue(n.Right)
	default:
		return ""
	}
}

func printValue(v Value) string {
	switch v.Kind {
	case KindField:
		return v.Field
	case KindString:
		return `"` + escapeString(v.Str) + `"`
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindSet:
		parts := make([]string, len(v.Set))
		for i, e := range v.Set {
			parts[i] = printValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
