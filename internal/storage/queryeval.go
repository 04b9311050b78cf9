package storage

import (
	"context"
	"fmt"
	"strings"

	"cadence/internal/query"
)

// EvaluateQuery compiles a dynamic playlist query clause into SQL and
// returns the matching song ids. Dynamic playlist membership is never
// stored — every read recomputes it against the current song table, per
// the data model.
func (db *DB) EvaluateQuery(ctx context.Context, clause query.Clause) ([]int64, error) {
	where, args, err := compileClause(clause)
	if err != nil {
		return nil, fmt.Errorf("storage: compile query: %w", err)
	}
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT s.id FROM songs s WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: evaluate query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func compileClause(c query.Clause) (string, []interface{}, error) {
	switch n := c.(type) {
	case *query.Compound:
		lsql, largs, err := compileClause(n.Left)
		if err != nil {
			return "", nil, err
		}
		rsql, rargs, err := compileClause(n.Right)
		if err != nil {
			return "", nil, err
		}
		joiner := " AND "
		if n.Op == query.Or {
			joiner = " OR "
		}
		return "(" + lsql + joiner + rsql + ")", append(largs, rargs...), nil
	case *query.Leaf:
		return compileLeaf(n)
	default:
		return "", nil, fmt.Errorf("unknown clause type %T", c)
	}
}

// compileLeaf figures out which side of the leaf names a field and builds
// the SQL fragment comparing that field's column (or membership relation,
// for multi-valued fields) against the other side's literal value.
func compileLeaf(n *query.Leaf) (string, []interface{}, error) {
	var field, value query.Value
	switch {
	case n.Left.Kind == query.KindField:
		field, value = n.Left, n.Right
	case n.Right.Kind == query.KindField:
		field, value = n.Right, n.Left
	default:
		return "", nil, fmt.Errorf("leaf has no field operand: %v %s %v", n.Left, n.Op, n.Right)
	}

	switch field.Field {
	case "title":
		return scalarCompare("s.title", n.Op, value)
	case "year":
		return scalarCompare("s.release_year", n.Op, value)
	case "album":
		cmp, args, err := scalarCompare("al.title", n.Op, value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM albums al WHERE al.id = s.album_id AND %s)", cmp), args, nil
	case "artist":
		return multiValueCompare("song_artists", "artists", n.Op, value)
	case "album_artist":
		return multiValueCompare("song_album_artists", "artists", n.Op, value)
	case "genre":
		return genreCompare(n.Op, value)
	default:
		return "", nil, fmt.Errorf("unsupported field %q", field.Field)
	}
}

func literalArgs(v query.Value) []interface{} {
	switch v.Kind {
	case query.KindString:
		return []interface{}{v.Str}
	case query.KindInt:
		return []interface{}{v.Int}
	case query.KindSet:
		out := make([]interface{}, len(v.Set))
		for i, e := range v.Set {
			if len(literalArgs(e)) > 0 {
				out[i] = literalArgs(e)[0]
			}
		}
		return out
	}
	return nil
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "?"
	}
	return strings.Join(p, ", ")
}

// scalarCompare builds a column comparison against a single-valued column.
func scalarCompare(col string, op query.Operator, v query.Value) (string, []interface{}, error) {
	switch op {
	case query.OpEq:
		return col + " = ?", literalArgs(v), nil
	case query.OpNeq:
		return col + " != ?", literalArgs(v), nil
	case query.OpEqCI:
		return "LOWER(" + col + ") = LOWER(?)", literalArgs(v), nil
	case query.OpEqFuzzy:
		return col + " LIKE '%' || ? || '%'", literalArgs(v), nil
	case query.OpGt:
		return col + " > ?", literalArgs(v), nil
	case query.OpGte:
		return col + " >= ?", literalArgs(v), nil
	case query.OpLt:
		return col + " < ?", literalArgs(v), nil
	case query.OpLte:
		return col + " <= ?", literalArgs(v), nil
	case query.OpMatch:
		return col + " LIKE '%' || ? || '%'", literalArgs(v), nil
	case query.OpNotMatch:
		return col + " NOT LIKE '%' || ? || '%'", literalArgs(v), nil
	case query.OpMatchCI:
		return "LOWER(" + col + ") LIKE '%' || LOWER(?) || '%'", literalArgs(v), nil
	case query.OpMatchFuzzy:
		return col + " LIKE '%' || ? || '%'", literalArgs(v), nil
	case query.OpIn:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("IN requires a set value")
		}
		return col + " IN (" + placeholders(len(v.Set)) + ")", literalArgs(v), nil
	case query.OpNotIn:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("NOT IN requires a set value")
		}
		if len(v.Set) == 0 {
			return "1=1", nil, nil
		}
		return col + " NOT IN (" + placeholders(len(v.Set)) + ")", literalArgs(v), nil
	default:
		return "", nil, fmt.Errorf("operator %s not supported for this field", op)
	}
}

// multiValueCompare handles artist/album_artist, both modeled as a join
// table mapping a song to an ordered set of artists.
func multiValueCompare(joinTable, nameTable string, op query.Operator, v query.Value) (string, []interface{}, error) {
	base := fmt.Sprintf("%s j JOIN %s t ON t.id = j.artist_id WHERE j.song_id = s.id", joinTable, nameTable)

	switch op {
	case query.OpContains, query.OpInside, query.OpEq:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AND t.name = ?)", base), literalArgs(v), nil
	case query.OpContainsNot, query.OpNotInside, query.OpNeq:
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AND t.name = ?)", base), literalArgs(v), nil
	case query.OpContainsAny, query.OpAnyInside:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("%s requires a set value", op)
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AND t.name IN (%s))", base, placeholders(len(v.Set))),
			literalArgs(v), nil
	case query.OpContainsNone, query.OpNoneInside:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("%s requires a set value", op)
		}
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AND t.name IN (%s))", base, placeholders(len(v.Set))),
			literalArgs(v), nil
	case query.OpContainsAll, query.OpAllInside:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("%s requires a set value", op)
		}
		var b strings.Builder
		var args []interface{}
		for i, e := range v.Set {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(fmt.Sprintf("EXISTS (SELECT 1 FROM %s AND t.name = ?)", base))
			args = append(args, literalArgs(e)...)
		}
		return "(" + b.String() + ")", args, nil
	default:
		return "", nil, fmt.Errorf("operator %s not supported for multi-valued field", op)
	}
}

// genreCompare handles the genre field, stored as a \x1f-separated string
// on the song row rather than a join table.
func genreCompare(op query.Operator, v query.Value) (string, []interface{}, error) {
	switch op {
	case query.OpContains, query.OpInside, query.OpEq:
		return "('\x1f' || s.genres || '\x1f') LIKE '%' || '\x1f' || ? || '\x1f' || '%'", literalArgs(v), nil
	case query.OpContainsNot, query.OpNotInside, query.OpNeq:
		return "('\x1f' || s.genres || '\x1f') NOT LIKE '%' || '\x1f' || ? || '\x1f' || '%'", literalArgs(v), nil
	case query.OpContainsAny, query.OpAnyInside, query.OpIn:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("%s requires a set value", op)
		}
		var parts []string
		var args []interface{}
		for _, e := range v.Set {
			parts = append(parts, "('\x1f' || s.genres || '\x1f') LIKE '%' || '\x1f' || ? || '\x1f' || '%'")
			args = append(args, literalArgs(e)...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	case query.OpContainsNone, query.OpNoneInside, query.OpNotIn:
		if v.Kind != query.KindSet {
			return "", nil, fmt.Errorf("%s requires a set value", op)
		}
		var parts []string
		var args []interface{}
		for _, e := range v.Set {
			parts = append(parts, "('\x1f' || s.genres || '\x1f') NOT LIKE '%' || '\x1f' || ? || '\x1f' || '%'")
			args = append(args, literalArgs(e)...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	default:
		return "", nil, fmt.Errorf("operator %s not supported for genre", op)
	}
}
