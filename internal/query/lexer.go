package query

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// tokenizer wraps participle's regex-based simple lexer. The grammar's
// ambiguous prefixes (IN/INSIDE, CONTAINS/CONTAINSALL, ...) are resolved by
// listing longer alternatives first, since participle's simple lexer tries
// each rule's alternatives in source order and keeps the first that
// matches at the current position.
var tokenizer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `-?[0-9]+`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Operator", Pattern: `NOT\s+IN|NOTINSIDE|ALLINSIDE|ANYINSIDE|NONEINSIDE|INSIDE|` +
		`CONTAINSNONE|CONTAINSALL|CONTAINSANY|CONTAINSNOT|CONTAINS|` +
		`!=|\?=|\*=|>=|<=|!~|\?~|\*~|IN|=|>|<|~`},
	{Name: "Keyword", Pattern: `AND|OR`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})

type token struct {
	kind  string
	value string
}

func tokenize(src string) ([]token, error) {
	lex, err := tokenizer.LexString("", src)
	if err != nil {
		return nil, err
	}
	symbols := tokenizer.Symbols()
	names := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		names[tt] = name
	}

	var out []token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.EOF() {
			break
		}
		name := names[tok.Type]
		if name == "Whitespace" {
			continue
		}
		out = append(out, token{kind: name, value: tok.Value})
	}
	return out, nil
}
