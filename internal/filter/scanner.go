package filter

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode"
)

// eof represents a marker rune for the end of the reader. ReadRune never
// yields it, so a NUL byte in the input scans as ILLEGAL.
const eof = rune(-1)

// Scanner represents a lexical scanner for filter expressions.
type Scanner struct {
	r   io.RuneScanner
	pos Pos
}

// NewScanner returns a new instance of Scanner.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Scan returns the next token and position from the underlying reader.
func (s *Scanner) Scan() (tok Token, pos Pos, lit string) {
	pos = s.pos

	ch := s.read()

	if isWhitespace(ch) {
		s.unread()
		return s.scanWhitespace()
	} else if isIdentFirstChar(ch) {
		s.unread()
		return s.scanIdent()
	} else if isDigit(ch) || ch == '.' {
		s.unread()
		return s.scanNumber(pos, "")
	} else if ch == '-' {
		next := s.read()
		s.unread()
		if isDigit(next) || next == '.' {
			return s.scanNumber(pos, "-")
		}
		return ILLEGAL, pos, string(ch)
	}

	switch ch {
	case eof:
		return EOF, pos, ""
	case '"', '\'':
		return s.scanString(ch, pos)
	case '`':
		return s.scanQuotedIdent(pos)
	case '=':
		if next := s.read(); next == '=' {
			return EQ, pos, "=="
		}
		s.unread()
		return ILLEGAL, pos, string(ch)
	case '!':
		if next := s.read(); next == '=' {
			return NEQ, pos, "!="
		}
		s.unread()
		return ILLEGAL, pos, string(ch)
	case '<':
		if next := s.read(); next == '=' {
			return LTE, pos, "<="
		}
		s.unread()
		return LT, pos, string(ch)
	case '>':
		if next := s.read(); next == '=' {
			return GTE, pos, ">="
		}
		s.unread()
		return GT, pos, string(ch)
	case '&':
		return AND, pos, string(ch)
	case '|':
		return OR, pos, string(ch)
	case '~':
		return NOT, pos, string(ch)
	case ',':
		return COMMA, pos, string(ch)
	case '(':
		return LPAREN, pos, string(ch)
	case ')':
		return RPAREN, pos, string(ch)
	case '[':
		return LBRACK, pos, string(ch)
	case ']':
		return RBRACK, pos, string(ch)
	}
	return ILLEGAL, pos, string(ch)
}

// read returns the next code point from the underlying reader and updates the pos.
func (s *Scanner) read() rune {
	ch, _, err := s.r.ReadRune()
	if err != nil {
		return eof
	}
	s.pos++
	return ch
}

// unread pushes the previously read rune back onto the reader.
func (s *Scanner) unread() {
	if err := s.r.UnreadRune(); err == nil {
		s.pos--
	}
}

// scanWhitespace consumes the current rune and all contiguous whitespace.
func (s *Scanner) scanWhitespace() (tok Token, pos Pos, lit string) {
	pos = s.pos

	var buf bytes.Buffer
	for {
		ch := s.read()
		if ch == eof {
			break
		} else if !isWhitespace(ch) {
			s.unread()
			break
		}
		buf.WriteRune(ch)
	}
	return WS, pos, buf.String()
}

func (s *Scanner) scanIdent() (tok Token, pos Pos, lit string) {
	pos = s.pos

	var buf bytes.Buffer
	for {
		ch := s.read()
		if ch == eof {
			break
		} else if !isIdentChar(ch) {
			s.unread()
			break
		}
		buf.WriteRune(ch)
	}
	lit = buf.String()
	return Lookup(lit), pos, lit
}

// scanQuotedIdent consumes a backtick-quoted column name. The opening
// backtick has already been read.
func (s *Scanner) scanQuotedIdent(pos Pos) (Token, Pos, string) {
	var buf bytes.Buffer
	for {
		ch := s.read()
		switch ch {
		case eof:
			return BADSTRING, pos, "`" + buf.String()
		case '`':
			return IDENT, pos, buf.String()
		}
		buf.WriteRune(ch)
	}
}

// scanString consumes a single or double quoted string. The opening quote
// has already been read. Backslash escapes the next character.
func (s *Scanner) scanString(quote rune, pos Pos) (Token, Pos, string) {
	var buf bytes.Buffer
	for {
		ch := s.read()
		switch ch {
		case eof:
			return BADSTRING, pos, string(quote) + buf.String()
		case quote:
			return STRING, pos, buf.String()
		case '\\':
			next := s.read()
			switch next {
			case eof:
				return BADSTRING, pos, string(quote) + buf.String()
			case 'n':
				buf.WriteRune('\n')
			case 't':
				buf.WriteRune('\t')
			default:
				buf.WriteRune(next)
			}
			continue
		}
		buf.WriteRune(ch)
	}
}

// scanNumber consumes digits, up to one '.' and an optional exponent. The
// sign, if any, has already been read and is passed as prefix.
func (s *Scanner) scanNumber(pos Pos, prefix string) (tok Token, _ Pos, lit string) {
	tok = INTEGER

	var buf bytes.Buffer
	buf.WriteString(prefix)

	var seenDot, seenExp bool
	for {
		ch := s.read()
		switch {
		case isDigit(ch):
		case ch == '.' && !seenDot && !seenExp:
			seenDot = true
			tok = FLOAT
		case (ch == 'e' || ch == 'E') && !seenExp:
			seenExp = true
			tok = FLOAT
			buf.WriteRune(ch)
			if sign := s.read(); sign == '+' || sign == '-' {
				buf.WriteRune(sign)
			} else {
				s.unread()
			}
			continue
		default:
			s.unread()
			lit = buf.String()
			if strings.HasSuffix(lit, "e") || strings.HasSuffix(lit, "E") ||
				strings.HasSuffix(lit, "+") || strings.HasSuffix(lit, "-") ||
				strings.TrimPrefix(lit, "-") == "." {
				return ILLEGAL, pos, lit
			}
			return tok, pos, lit
		}
		buf.WriteRune(ch)
	}
}

// isWhitespace returns true if the rune is a space, tab, or newline.
func isWhitespace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }

// isDigit returns true if the rune is a digit.
func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// isIdentFirstChar returns true if the rune can be used as the first char in an unquoted identifier.
func isIdentFirstChar(ch rune) bool { return unicode.IsLetter(ch) || ch == '_' }

// isIdentChar returns true if the rune can be used in an unquoted identifier.
func isIdentChar(ch rune) bool { return isIdentFirstChar(ch) || isDigit(ch) }

// bufScanner represents a wrapper for scanner to add a buffer.
// It provides a fixed-length circular buffer that can be unread.
type bufScanner struct {
	s   *Scanner
	i   int // buffer index
	n   int // buffer size
	buf [3]struct {
		tok Token
		pos Pos
		lit string
	}
}

// newBufScanner returns a new buffered scanner for a reader.
func newBufScanner(r io.Reader) *bufScanner {
	return &bufScanner{s: NewScanner(r)}
}

// Scan reads the next token from the scanner.
func (s *bufScanner) Scan() (tok Token, pos Pos, lit string) {
	if s.n > 0 {
		s.n--
	} else {
		s.i = (s.i + 1) % len(s.buf)
		buf := &s.buf[s.i]
		buf.tok, buf.pos, buf.lit = s.s.Scan()
	}
	buf := &s.buf[(s.i-s.n+len(s.buf))%len(s.buf)]
	return buf.tok, buf.pos, buf.lit
}

// ScanSkipWhitespace reads the next non-whitespace token.
func (s *bufScanner) ScanSkipWhitespace() (tok Token, pos Pos, lit string) {
	for {
		tok, pos, lit = s.Scan()
		if tok != WS {
			return
		}
	}
}

// Unscan pushes the previously token back onto the buffer.
func (s *bufScanner) Unscan() { s.n++ }
