package filter

import "strings"

// Token is a lexical token of the filter language.
type Token int

const (
	// Special tokens
	ILLEGAL Token = iota
	EOF
	WS

	literal_beg
	IDENT     // Year or `Test Split`
	STRING    // 'CC BY 4.0'
	BADSTRING // unclosed string or identifier
	INTEGER   // 12345
	FLOAT     // 100.2
	literal_end

	keyword_beg
	AND
	OR
	NOT
	IN
	TRUE
	FALSE
	NONE
	keyword_end

	EQ     // ==
	NEQ    // !=
	LT     // <
	LTE    // <=
	GT     // >
	GTE    // >=
	COMMA  // ,
	LPAREN // (
	RPAREN // )
	LBRACK // [
	RBRACK // ]
)

var tokens = [...]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	WS:        "WS",
	IDENT:     "IDENT",
	STRING:    "STRING",
	BADSTRING: "BADSTRING",
	INTEGER:   "INTEGER",
	FLOAT:     "FLOAT",

	AND:   "and",
	OR:    "or",
	NOT:   "not",
	IN:    "in",
	TRUE:  "True",
	FALSE: "False",
	NONE:  "None",

	EQ:     "==",
	NEQ:    "!=",
	LT:     "<",
	LTE:    "<=",
	GT:     ">",
	GTE:    ">=",
	COMMA:  ",",
	LPAREN: "(",
	RPAREN: ")",
	LBRACK: "[",
	RBRACK: "]",
}

var keywords map[string]Token

func init() {
	keywords = make(map[string]Token)
	for tok := keyword_beg + 1; tok < keyword_end; tok++ {
		keywords[strings.ToLower(tokens[tok])] = tok
	}
	keywords["null"] = NONE
}

// String returns the string representation of the token.
func (tok Token) String() string {
	if tok >= 0 && tok < Token(len(tokens)) {
		return tokens[tok]
	}
	return ""
}

// isComparison returns true for the relational operators.
func (tok Token) isComparison() bool {
	switch tok {
	case EQ, NEQ, LT, LTE, GT, GTE:
		return true
	}
	return false
}

// Lookup returns the token associated with a given string. Keywords are
// matched case-insensitively.
func Lookup(ident string) Token {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// Pos specifies the character offset of a token within the expression.
type Pos int
