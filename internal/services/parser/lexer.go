package parser

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a token
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	// Identifiers and literals
	TOKEN_IDENTIFIER
	TOKEN_STRING // String literals (quoted)
	TOKEN_NUMBER // Integer or float literals, optionally signed

	// Keywords
	TOKEN_SCHEMA
	TOKEN_SINGLE
	TOKEN_MULTI
	TOKEN_ALIAS
	TOKEN_VERSION
	TOKEN_DOC
	TOKEN_APPLIES_TO
	TOKEN_ANY
	TOKEN_REQUIRES
	TOKEN_ATTRIBUTE
	TOKEN_RELATIONSHIP
	TOKEN_ALLOWED
	TOKEN_RANGE
	TOKEN_RULE

	// Operators
	TOKEN_EQUALS // =
	TOKEN_PIPE   // |
	TOKEN_STAR   // *

	// Comparison operators (for CEL expressions in rule())
	TOKEN_EQ          // ==
	TOKEN_NEQ         // !=
	TOKEN_LT          // <
	TOKEN_LTE         // <=
	TOKEN_GT          // >
	TOKEN_GTE         // >=
	TOKEN_LOGICAL_AND // &&
	TOKEN_LOGICAL_OR  // ||
	TOKEN_EXCLAMATION // !
	TOKEN_PLUS        // +
	TOKEN_MINUS       // -

	// Delimiters
	TOKEN_COLON
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_DOT
	TOKEN_COMMA
)

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL:      "ILLEGAL",
	TOKEN_EOF:          "EOF",
	TOKEN_IDENTIFIER:   "IDENTIFIER",
	TOKEN_STRING:       "STRING",
	TOKEN_NUMBER:       "NUMBER",
	TOKEN_SCHEMA:       "schema",
	TOKEN_SINGLE:       "single",
	TOKEN_MULTI:        "multi",
	TOKEN_ALIAS:        "alias",
	TOKEN_VERSION:      "version",
	TOKEN_DOC:          "doc",
	TOKEN_APPLIES_TO:   "applies_to",
	TOKEN_ANY:          "any",
	TOKEN_REQUIRES:     "requires",
	TOKEN_ATTRIBUTE:    "attribute",
	TOKEN_RELATIONSHIP: "relationship",
	TOKEN_ALLOWED:      "allowed",
	TOKEN_RANGE:        "range",
	TOKEN_RULE:         "rule",
	TOKEN_EQUALS:       "=",
	TOKEN_PIPE:         "|",
	TOKEN_STAR:         "*",
	TOKEN_EQ:           "==",
	TOKEN_NEQ:          "!=",
	TOKEN_LT:           "<",
	TOKEN_LTE:          "<=",
	TOKEN_GT:           ">",
	TOKEN_GTE:          ">=",
	TOKEN_LOGICAL_AND:  "&&",
	TOKEN_LOGICAL_OR:   "||",
	TOKEN_EXCLAMATION:  "!",
	TOKEN_PLUS:         "+",
	TOKEN_MINUS:        "-",
	TOKEN_COLON:        ":",
	TOKEN_LBRACE:       "{",
	TOKEN_RBRACE:       "}",
	TOKEN_LPAREN:       "(",
	TOKEN_RPAREN:       ")",
	TOKEN_LBRACKET:     "[",
	TOKEN_RBRACKET:     "]",
	TOKEN_DOT:          ".",
	TOKEN_COMMA:        ",",
}

var keywords = map[string]TokenType{
	"schema":       TOKEN_SCHEMA,
	"single":       TOKEN_SINGLE,
	"multi":        TOKEN_MULTI,
	"alias":        TOKEN_ALIAS,
	"version":      TOKEN_VERSION,
	"doc":          TOKEN_DOC,
	"applies_to":   TOKEN_APPLIES_TO,
	"any":          TOKEN_ANY,
	"requires":     TOKEN_REQUIRES,
	"attribute":    TOKEN_ATTRIBUTE,
	"relationship": TOKEN_RELATIONSHIP,
	"allowed":      TOKEN_ALLOWED,
	"range":        TOKEN_RANGE,
	"rule":         TOKEN_RULE,
}

// Token represents a lexical token
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// String returns a string representation of the token
func (t *Token) String() string {
	typeName := tokenNames[t.Type]
	if typeName == "" {
		typeName = fmt.Sprintf("UNKNOWN(%d)", t.Type)
	}
	return fmt.Sprintf("%s(%s) at %d:%d", typeName, t.Value, t.Line, t.Column)
}

// IsWord reports whether the token is an identifier or a keyword.
// Keywords are legal as segments of namespaced property names (e.g. "newton:range").
func (t *Token) IsWord() bool {
	if t.Type == TOKEN_IDENTIFIER {
		return true
	}
	_, ok := keywords[t.Value]
	return ok && t.Type != TOKEN_STRING
}

// Lexer performs lexical analysis
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

// NewLexer creates a new Lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipWhitespace skips whitespace characters
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// skipComment skips single-line comments starting with //
func (l *Lexer) skipComment() {
	if l.ch == '/' && l.peekChar() == '/' {
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
	}
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a number literal: [-]digits[.digits][(e|E)[+|-]digits]
func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			l.readChar() // consume 'e'
			if l.ch == '-' || l.ch == '+' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[position:l.position]
}

// readString reads a string literal enclosed in quotes
func (l *Lexer) readString() (string, error) {
	position := l.position + 1 // Skip opening quote
	for {
		l.readChar()
		if l.ch == '"' {
			break
		}
		if l.ch == 0 || l.ch == '\n' {
			return "", fmt.Errorf("unterminated string at %d:%d", l.line, l.column)
		}
	}
	return l.input[position:l.position], nil
}

// NextToken returns the next token
func (l *Lexer) NextToken() (*Token, error) {
	for {
		l.skipWhitespace()
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipComment()
		} else {
			break
		}
	}

	var tok *Token
	line := l.line
	column := l.column

	two := func(t TokenType, value string) *Token {
		l.readChar()
		l.readChar()
		return &Token{Type: t, Value: value, Line: line, Column: column}
	}
	one := func(t TokenType) *Token {
		value := string(l.ch)
		l.readChar()
		return &Token{Type: t, Value: value, Line: line, Column: column}
	}

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			tok = two(TOKEN_EQ, "==")
		} else {
			tok = one(TOKEN_EQUALS)
		}
	case '!':
		if l.peekChar() == '=' {
			tok = two(TOKEN_NEQ, "!=")
		} else {
			tok = one(TOKEN_EXCLAMATION)
		}
	case '<':
		if l.peekChar() == '=' {
			tok = two(TOKEN_LTE, "<=")
		} else {
			tok = one(TOKEN_LT)
		}
	case '>':
		if l.peekChar() == '=' {
			tok = two(TOKEN_GTE, ">=")
		} else {
			tok = one(TOKEN_GT)
		}
	case '&':
		if l.peekChar() != '&' {
			return nil, fmt.Errorf("illegal character '&' at %d:%d", line, column)
		}
		tok = two(TOKEN_LOGICAL_AND, "&&")
	case '|':
		if l.peekChar() == '|' {
			tok = two(TOKEN_LOGICAL_OR, "||")
		} else {
			tok = one(TOKEN_PIPE)
		}
	case '-':
		if isDigit(l.peekChar()) {
			value := l.readNumber()
			return &Token{Type: TOKEN_NUMBER, Value: value, Line: line, Column: column}, nil
		}
		tok = one(TOKEN_MINUS)
	case '+':
		tok = one(TOKEN_PLUS)
	case '*':
		tok = one(TOKEN_STAR)
	case ':':
		tok = one(TOKEN_COLON)
	case '{':
		tok = one(TOKEN_LBRACE)
	case '}':
		tok = one(TOKEN_RBRACE)
	case '(':
		tok = one(TOKEN_LPAREN)
	case ')':
		tok = one(TOKEN_RPAREN)
	case '[':
		tok = one(TOKEN_LBRACKET)
	case ']':
		tok = one(TOKEN_RBRACKET)
	case '.':
		tok = one(TOKEN_DOT)
	case ',':
		tok = one(TOKEN_COMMA)
	case '"':
		value, err := l.readString()
		if err != nil {
			return nil, err
		}
		tok = &Token{Type: TOKEN_STRING, Value: value, Line: line, Column: column}
		l.readChar() // Skip closing quote
	case 0:
		tok = &Token{Type: TOKEN_EOF, Value: "", Line: line, Column: column}
	default:
		if isLetter(l.ch) || l.ch == '_' {
			value := l.readIdentifier()
			tokenType := TOKEN_IDENTIFIER
			if kw, ok := keywords[value]; ok {
				tokenType = kw
			}
			return &Token{Type: tokenType, Value: value, Line: line, Column: column}, nil
		} else if isDigit(l.ch) {
			value := l.readNumber()
			return &Token{Type: TOKEN_NUMBER, Value: value, Line: line, Column: column}, nil
		}
		return nil, fmt.Errorf("illegal character '%c' at %d:%d", l.ch, line, column)
	}

	return tok, nil
}

// isLetter checks if a character is a letter
func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

// isDigit checks if a character is a digit
func isDigit(ch byte) bool {
	return unicode.IsDigit(rune(ch))
}
