package jack

import (
	"fmt"
	"strings"
	"unicode"
)

// ----------------------------------------------------------------------------
// Jack Tokenizer

// This section defines the lexical analyzer for the nand2tetris Jack language.
//
// Unlike the asm/vm front-ends (which hand a whole io.Reader to a goparsec grammar in
// one shot) the Jack grammar is recursive and context sensitive enough (statements
// nest inside statements, expressions inside expressions) that a pull-based tokenizer
// feeding a hand-written recursive descent Parser is a far more natural fit: the
// Parser asks for 'one more token' exactly when its grammar rule needs one, instead of
// a combinator library backtracking over the whole file.
//
// The tokenizer itself is eager: 'NewTokenizer' scans the entire source once up front
// into a flat token slice, then 'HasMore'/'Advance' just walk a cursor over it. This
// keeps the string-literal subtlety contained in a single place ('lexString'), since a
// comment marker can never be mistaken for one once it's inside an already-lexed
// string token.

type TokenType string

const (
	KeywordToken     TokenType = "keyword"
	SymbolToken      TokenType = "symbol"
	IntConstToken    TokenType = "integerConstant"
	StringConstToken TokenType = "stringConstant"
	IdentifierToken  TokenType = "identifier"
	// Sentinel token appended at the end of the stream so the Parser can test for
	// end-of-input with a plain type comparison instead of juggling 'HasMore' around
	// every lookahead.
	EOFToken TokenType = "eof"
)

// A single lexical unit produced by the Tokenizer. 'Value' always carries the raw
// source text (with the enclosing quotes stripped for string constants), the caller
// interprets it based on 'Type'.
type Token struct {
	Type  TokenType
	Value string
}

var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true,
	"int": true, "char": true, "boolean": true, "void": true,
	"true": true, "false": true, "null": true, "this": true,
	"let": true, "do": true, "if": true, "else": true, "while": true, "return": true,
}

// Every single-char symbol recognized by the grammar, '^' and '#' included for the
// shift operators (see the 'ExprType' doc comment in jack.go: both are unary, single
// char, unlike the two-char '<<'/'>>' some Jack extensions use).
const symbolChars = "{}()[].,;+-*/&|<>=~^#"

// Scans an entire '.jack' source file into a flat token stream.
type Tokenizer struct {
	tokens []Token
	cursor int // Index of the token last returned by 'Advance', -1 before the first call
}

// Initializes a Tokenizer and eagerly lexes the whole of 'source'.
func NewTokenizer(source string) (*Tokenizer, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, fmt.Errorf("error lexing source: %w", err)
	}
	return &Tokenizer{tokens: tokens, cursor: -1}, nil
}

// Reports whether there's at least one more token to 'Advance' into.
func (t *Tokenizer) HasMore() bool { return t.cursor+1 < len(t.tokens) }

// Moves the cursor onto the next token. Must only be called when 'HasMore' is true.
func (t *Tokenizer) Advance() error {
	if !t.HasMore() {
		return fmt.Errorf("tokenizer exhausted, no more tokens to advance to")
	}
	t.cursor++
	return nil
}

// Returns the token the cursor currently sits on. Must only be called after at least
// one successful 'Advance' call.
func (t *Tokenizer) Current() (Token, error) {
	if t.cursor < 0 || t.cursor >= len(t.tokens) {
		return Token{}, fmt.Errorf("no current token, 'Advance' must be called first")
	}
	return t.tokens[t.cursor], nil
}

// Returns the token 'n' positions past the current cursor without moving it, or false
// if the stream doesn't have that many tokens left. The Parser does not call it: it
// tells 'varName' vs 'varName[' vs 'varName.subroutineName(' apart by consuming the
// identifier and then inspecting the current token.
func (t *Tokenizer) Peek(n int) (Token, bool) {
	idx := t.cursor + n
	if idx < 0 || idx >= len(t.tokens) {
		return Token{}, false
	}
	return t.tokens[idx], true
}

// ----------------------------------------------------------------------------
// Lexing

func lex(source string) ([]Token, error) {
	runes, tokens := []rune(source), []Token{}

	for i := 0; i < len(runes); {
		switch r := runes[i]; {
		case unicode.IsSpace(r):
			i++

		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := strings.Index(string(runes[i:]), "*/")
			if end == -1 {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i += end + len("*/")

		case r == '"':
			value, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Type: StringConstToken, Value: value})
			i = next

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: IntConstToken, Value: string(runes[start:i])})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			if keywords[word] {
				tokens = append(tokens, Token{Type: KeywordToken, Value: word})
			} else {
				tokens = append(tokens, Token{Type: IdentifierToken, Value: word})
			}

		case strings.ContainsRune(symbolChars, r):
			tokens = append(tokens, Token{Type: SymbolToken, Value: string(r)})
			i++

		default:
			return nil, fmt.Errorf("unrecognized character %q at offset %d", r, i)
		}
	}

	return append(tokens, Token{Type: EOFToken}), nil
}

// Lexes a string constant as a single atomic token starting at the opening quote
// 'start'. This is what structurally prevents '//' or '/*' inside a string literal
// from ever being mistaken for the start of a comment: 'lex' never re-enters its
// comment-skipping branch mid-string because the whole literal is consumed here in one
// pass. Jack string constants may not contain a newline or a double quote.
func lexString(runes []rune, start int) (string, int, error) {
	i := start + 1
	for i < len(runes) {
		if runes[i] == '\n' {
			return "", 0, fmt.Errorf("unterminated string constant, newline before closing quote")
		}
		if runes[i] == '"' {
			return string(runes[start+1 : i]), i + 1, nil
		}
		i++
	}
	return "", 0, fmt.Errorf("unterminated string constant, missing closing quote")
}
