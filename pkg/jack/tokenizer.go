package jack

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"nand2tetris.go.dev/toolchain/pkg/diagnostic"
)

// ----------------------------------------------------------------------------
// Tokenizer

// This section implements the lexical analysis phase of the Jack compiler: it turns a raw
// stream of source bytes into a stream of 'Token' values the 'Parser' consumes one (or two,
// via 'Peek') at a time.
//
// Unlike 'pkg/asm' and 'pkg/vm' (which lean on 'goparsec' combinators for their much smaller
// grammars) the Jack tokenizer is hand rolled: Jack requires unbounded lookahead-free,
// single-token-lookahead recursive descent parsing and its token alphabet (keywords, symbols,
// literals) is small and fixed, so a direct scanner is both simpler and faster than building
// the same thing out of combinators.

// TokenKind classifies a 'Token' into one of the 5 lexical categories of the Jack grammar.
type TokenKind string

const (
	KeywordToken     TokenKind = "keyword"
	SymbolToken      TokenKind = "symbol"
	IntConstToken    TokenKind = "integerConstant"
	StringConstToken TokenKind = "stringConstant"
	IdentifierToken  TokenKind = "identifier"
)

// A Token is the smallest meaningful unit of Jack source, tagged with its Kind and the
// Line it was found on (used to produce readable parse errors).
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
}

func (t Token) String() string { return fmt.Sprintf("%s(%q)", t.Kind, t.Value) }

// The 21 reserved words of the Jack language, every other identifier-shaped lexeme is an 'identifier'.
var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

// Single-character symbols, including the Hack shift extension operators '^' and '#'.
const symbolChars = "{}()[].,;+-*/&|<>=~^#"

// Tokenizer scans a Jack source file into a sequence of Token, comments and whitespace are
// stripped away before the Parser ever sees them. Supports a single token of lookahead via
// 'Peek', which the Parser relies on throughout to decide between grammar alternatives.
type Tokenizer struct {
	reader  *bufio.Reader
	pending []rune // LIFO pushback buffer, lets us unread more than the single rune bufio.Reader allows
	file    string // Source file name, only used to annotate diagnostics, may be ""
	line    int
	peeked  *Token
}

// NewTokenizer wraps 'r' into a ready to use 'Tokenizer', starting at line 1. 'file' is
// attached to any error produced while scanning and may be left "" when unknown.
func NewTokenizer(r io.Reader, file string) *Tokenizer {
	return &Tokenizer{reader: bufio.NewReader(r), file: file, line: 1}
}

// Peek returns the next Token without consuming it, repeated calls return the same Token
// until 'Next' is called.
func (t *Tokenizer) Peek() (Token, error) {
	if t.peeked == nil {
		tok, err := t.scan()
		if err != nil {
			return Token{}, err
		}
		t.peeked = &tok
	}
	return *t.peeked, nil
}

// Next consumes and returns the next Token, returns 'io.EOF' once the source is exhausted.
func (t *Tokenizer) Next() (Token, error) {
	if t.peeked != nil {
		tok := *t.peeked
		t.peeked = nil
		return tok, nil
	}
	return t.scan()
}

// readRune returns the next rune, preferring anything pushed back via 'unreadRune' over the
// underlying reader, this is what lets 'scan' look arbitrarily far ahead (e.g. distinguishing
// '/' as division from '//' and '/*' comment openers) and then give runes back.
func (t *Tokenizer) readRune() (rune, error) {
	if n := len(t.pending); n > 0 {
		r := t.pending[n-1]
		t.pending = t.pending[:n-1]
		return r, nil
	}
	r, _, err := t.reader.ReadRune()
	return r, err
}

func (t *Tokenizer) unreadRune(r rune) { t.pending = append(t.pending, r) }

// skipWhitespaceAndComments consumes runs of whitespace, '//' line comments and '/* */' block
// comments, leaving the reader positioned right before the next meaningful rune.
func (t *Tokenizer) skipWhitespaceAndComments() error {
	for {
		r, err := t.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch {
		case r == '\n':
			t.line++

		case r == ' ' || r == '\t' || r == '\r':
			// no-op, just consumed

		case r == '/':
			next, err := t.readRune()
			if err != nil { // trailing '/' at EOF, hand it back so 'scan' emits it as a symbol
				t.unreadRune(r)
				return nil
			}

			switch next {
			case '/': // line comment, discard up to (and including) the newline
				for {
					c, err := t.readRune()
					if err != nil {
						return nil
					}
					if c == '\n' {
						t.line++
						break
					}
				}
			case '*': // block comment, discard up to the matching '*/'
				for {
					c, err := t.readRune()
					if err != nil {
						return diagnostic.Errorf(t.file, t.line, "unterminated comment")
					}
					if c == '\n' {
						t.line++
						continue
					}
					if c != '*' {
						continue
					}
					closing, err := t.readRune()
					if err == nil && closing == '/' {
						break
					} else if err == nil {
						t.unreadRune(closing)
					}
				}
			default: // a real division operator, push both runes back and stop skipping
				t.unreadRune(next)
				t.unreadRune(r)
				return nil
			}

		default:
			t.unreadRune(r)
			return nil
		}
	}
}

// scan reads and classifies exactly one Token, this is the only place lexical rules live.
func (t *Tokenizer) scan() (Token, error) {
	if err := t.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	line := t.line
	r, err := t.readRune()
	if err != nil {
		return Token{}, io.EOF
	}

	switch {
	case strings.ContainsRune(symbolChars, r):
		return Token{Kind: SymbolToken, Value: string(r), Line: line}, nil

	case r == '"':
		return t.scanStringConstant(line)

	case unicode.IsDigit(r):
		return t.scanIntegerConstant(r, line)

	case unicode.IsLetter(r) || r == '_':
		return t.scanWord(r, line)

	default:
		return Token{}, diagnostic.Errorf(t.file, line, "unexpected character %q", r)
	}
}

// scanStringConstant reads the content between a pair of '"' delimiters, Jack string constants
// cannot span multiple lines or contain an embedded '"'.
func (t *Tokenizer) scanStringConstant(line int) (Token, error) {
	var value strings.Builder
	for {
		c, err := t.readRune()
		if err != nil || c == '\n' {
			return Token{}, diagnostic.Errorf(t.file, line, "unterminated string constant")
		}
		if c == '"' {
			return Token{Kind: StringConstToken, Value: value.String(), Line: line}, nil
		}
		value.WriteRune(c)
	}
}

// scanIntegerConstant reads the maximal run of digits starting with 'first', enforcing the
// 0..32767 range the Hack VM's 16-bit words can represent.
func (t *Tokenizer) scanIntegerConstant(first rune, line int) (Token, error) {
	var value strings.Builder
	value.WriteRune(first)

	for {
		c, err := t.readRune()
		if err != nil {
			break
		}
		if !unicode.IsDigit(c) {
			t.unreadRune(c)
			break
		}
		value.WriteRune(c)
	}

	digits := value.String()
	n, err := strconv.Atoi(digits)
	if err != nil || n > 32767 {
		return Token{}, diagnostic.Errorf(t.file, line, "integer constant %q out of range", digits)
	}
	return Token{Kind: IntConstToken, Value: digits, Line: line}, nil
}

// scanWord reads the maximal run of identifier characters starting with 'first' (maximal
// munch, so e.g. "ifx" is never mistaken for the keyword "if" followed by "x"), then
// classifies the result as a keyword or a plain identifier.
func (t *Tokenizer) scanWord(first rune, line int) (Token, error) {
	var value strings.Builder
	value.WriteRune(first)

	for {
		c, err := t.readRune()
		if err != nil {
			break
		}
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			t.unreadRune(c)
			break
		}
		value.WriteRune(c)
	}

	word := value.String()
	if keywords[word] {
		return Token{Kind: KeywordToken, Value: word, Line: line}, nil
	}
	return Token{Kind: IdentifierToken, Value: word, Line: line}, nil
}
