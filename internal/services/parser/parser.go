package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses the catalog DSL into an AST
type Parser struct {
	lexer   *Lexer
	current *Token
	peek    *Token
	errors  []string
}

// NewParser creates a new Parser
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{
		lexer:  lexer,
		errors: []string{},
	}

	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()

	return p
}

// Parse is a shorthand for NewParser(NewLexer(input)).Parse()
func Parse(input string) (*CatalogAST, error) {
	return NewParser(NewLexer(input)).Parse()
}

// nextToken advances to the next token
func (p *Parser) nextToken() {
	p.current = p.peek
	tok, err := p.lexer.NextToken()
	if err != nil {
		p.errors = append(p.errors, err.Error())
		p.peek = &Token{Type: TOKEN_EOF}
	} else {
		p.peek = tok
	}
}

// currentTokenIs checks if the current token is of the given type
func (p *Parser) currentTokenIs(t TokenType) bool {
	return p.current != nil && p.current.Type == t
}

// peekTokenIs checks if the peek token is of the given type
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peek != nil && p.peek.Type == t
}

// expectPeek checks if the next token is of the expected type and advances
func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// peekError adds an error for unexpected peek token
func (p *Parser) peekError(t TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead at %d:%d",
		tokenNames[t], tokenNames[p.peek.Type], p.peek.Line, p.peek.Column)
	p.errors = append(p.errors, msg)
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// Parse parses the entire catalog
func (p *Parser) Parse() (*CatalogAST, error) {
	catalog := &CatalogAST{
		Schemas: []*SchemaAST{},
	}

	for !p.currentTokenIs(TOKEN_EOF) {
		if p.currentTokenIs(TOKEN_SCHEMA) {
			schema := p.parseSchema()
			if schema != nil {
				catalog.Schemas = append(catalog.Schemas, schema)
			} else {
				// If parseSchema failed, skip to next token to avoid infinite loop
				p.nextToken()
			}
		} else {
			p.errorf("unexpected token %s at %d:%d, expected 'schema'",
				tokenNames[p.current.Type], p.current.Line, p.current.Column)
			p.nextToken()
		}
	}

	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors:\n%s", strings.Join(p.errors, "\n"))
	}

	return catalog, nil
}

// parseSchema parses a schema definition
func (p *Parser) parseSchema() *SchemaAST {
	schema := &SchemaAST{
		Kind:          "single",
		Line:          p.current.Line,
		Requires:      []string{},
		Attributes:    []*AttributeAST{},
		Relationships: []*RelationshipAST{},
	}

	// Expect identifier (schema name)
	if !p.expectPeek(TOKEN_IDENTIFIER) {
		return nil
	}
	schema.Name = p.current.Value

	// Optional apply kind
	switch {
	case p.peekTokenIs(TOKEN_SINGLE):
		p.nextToken()
	case p.peekTokenIs(TOKEN_MULTI):
		p.nextToken()
		schema.Kind = "multi"
		p.nextToken()
		prefix, ok := p.parseName()
		if !ok {
			return nil
		}
		schema.InstancePrefix = prefix
	}

	// Expect {
	if !p.expectPeek(TOKEN_LBRACE) {
		return nil
	}

	// Parse schema body
	p.nextToken()
	for !p.currentTokenIs(TOKEN_RBRACE) && !p.currentTokenIs(TOKEN_EOF) {
		switch {
		case p.currentTokenIs(TOKEN_ALIAS):
			if p.expectPeek(TOKEN_IDENTIFIER) {
				schema.Alias = p.current.Value
			}
			p.nextToken()
		case p.currentTokenIs(TOKEN_VERSION):
			if p.expectPeek(TOKEN_NUMBER) {
				v, err := strconv.Atoi(p.current.Value)
				if err != nil {
					p.errorf("invalid version %q at %d:%d", p.current.Value, p.current.Line, p.current.Column)
				}
				schema.Version = v
			}
			p.nextToken()
		case p.currentTokenIs(TOKEN_DOC):
			if p.expectPeek(TOKEN_STRING) {
				schema.Doc = p.current.Value
			}
			p.nextToken()
		case p.currentTokenIs(TOKEN_APPLIES_TO):
			if schema.AppliesTo != nil {
				p.errorf("schema %s: applies_to declared twice at %d:%d", schema.Name, p.current.Line, p.current.Column)
			}
			schema.AppliesTo = p.parseAppliesTo()
		case p.currentTokenIs(TOKEN_REQUIRES):
			schema.Requires = append(schema.Requires, p.parseRequires()...)
		case p.currentTokenIs(TOKEN_ATTRIBUTE):
			attribute := p.parseAttribute()
			if attribute != nil {
				schema.Attributes = append(schema.Attributes, attribute)
			}
		case p.currentTokenIs(TOKEN_RELATIONSHIP):
			relationship := p.parseRelationship()
			if relationship != nil {
				schema.Relationships = append(schema.Relationships, relationship)
			}
		default:
			p.errorf("unexpected token %s in schema at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column)
			p.nextToken()
		}
	}

	// Expect }
	if !p.currentTokenIs(TOKEN_RBRACE) {
		p.errorf("expected '}' at end of schema, got %s at %d:%d",
			tokenNames[p.current.Type], p.current.Line, p.current.Column)
		return nil
	}

	p.nextToken()
	return schema
}

// parseName parses a colon separated property name starting at the current token.
// It leaves the current token on the last segment.
func (p *Parser) parseName() (string, bool) {
	if !p.current.IsWord() {
		p.errorf("expected name, got %s at %d:%d", tokenNames[p.current.Type], p.current.Line, p.current.Column)
		return "", false
	}
	parts := []string{p.current.Value}
	for p.peekTokenIs(TOKEN_COLON) {
		p.nextToken() // consume :
		p.nextToken()
		if !p.current.IsWord() {
			p.errorf("expected name segment after ':', got %s at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column)
			return "", false
		}
		parts = append(parts, p.current.Value)
	}
	return strings.Join(parts, ":"), true
}

// parseAppliesTo parses "applies_to any", "applies_to A | B" or "applies_to rule(expr)"
func (p *Parser) parseAppliesTo() AppliesToAST {
	p.nextToken()
	switch {
	case p.currentTokenIs(TOKEN_ANY):
		p.nextToken()
		return &AnyTypeAST{}
	case p.currentTokenIs(TOKEN_RULE):
		return p.parseRuleExpression()
	case p.currentTokenIs(TOKEN_IDENTIFIER):
		types := []string{p.current.Value}
		for p.peekTokenIs(TOKEN_PIPE) {
			p.nextToken() // consume |
			if !p.expectPeek(TOKEN_IDENTIFIER) {
				return nil
			}
			types = append(types, p.current.Value)
		}
		p.nextToken()
		return &TypeListAST{Types: types}
	default:
		p.errorf("unexpected token %s in applies_to at %d:%d",
			tokenNames[p.current.Type], p.current.Line, p.current.Column)
		p.nextToken()
		return nil
	}
}

// parseRequires parses "requires A, B"
func (p *Parser) parseRequires() []string {
	var names []string
	if !p.expectPeek(TOKEN_IDENTIFIER) {
		p.nextToken()
		return nil
	}
	names = append(names, p.current.Value)
	for p.peekTokenIs(TOKEN_COMMA) {
		p.nextToken() // consume ,
		if !p.expectPeek(TOKEN_IDENTIFIER) {
			return names
		}
		names = append(names, p.current.Value)
	}
	p.nextToken()
	return names
}

// parseAttribute parses an attribute definition
// Syntax: attribute TYPE NAME [= literal] [allowed [..]] [range [min, max]] [doc "..."]
func (p *Parser) parseAttribute() *AttributeAST {
	attribute := &AttributeAST{Line: p.current.Line}

	// Expect identifier (type)
	if !p.expectPeek(TOKEN_IDENTIFIER) {
		return nil
	}
	attribute.Type = p.current.Value

	p.nextToken()
	name, ok := p.parseName()
	if !ok {
		return nil
	}
	attribute.Name = name
	p.nextToken()

	for {
		switch {
		case p.currentTokenIs(TOKEN_EQUALS):
			p.nextToken()
			literal := p.parseLiteral()
			if literal == nil {
				return nil
			}
			attribute.Default = literal
		case p.currentTokenIs(TOKEN_ALLOWED):
			allowed, ok := p.parseAllowed()
			if !ok {
				return nil
			}
			attribute.Allowed = allowed
		case p.currentTokenIs(TOKEN_RANGE):
			min, max, ok := p.parseRange()
			if !ok {
				return nil
			}
			attribute.Min, attribute.Max = min, max
		case p.currentTokenIs(TOKEN_DOC):
			if !p.expectPeek(TOKEN_STRING) {
				return nil
			}
			attribute.Doc = p.current.Value
			p.nextToken()
		default:
			return attribute
		}
	}
}

// parseLiteral parses a number, string or bool literal at the current token
func (p *Parser) parseLiteral() *LiteralAST {
	var literal *LiteralAST
	switch {
	case p.currentTokenIs(TOKEN_NUMBER):
		literal = &LiteralAST{Kind: LiteralNumber, Value: p.current.Value}
	case p.currentTokenIs(TOKEN_STRING):
		literal = &LiteralAST{Kind: LiteralString, Value: p.current.Value}
	case p.currentTokenIs(TOKEN_IDENTIFIER) && (p.current.Value == "true" || p.current.Value == "false"):
		literal = &LiteralAST{Kind: LiteralBool, Value: p.current.Value}
	default:
		p.errorf("expected literal value, got %s at %d:%d",
			tokenNames[p.current.Type], p.current.Line, p.current.Column)
		return nil
	}
	p.nextToken()
	return literal
}

// parseAllowed parses allowed ["a", "b"]
func (p *Parser) parseAllowed() ([]string, bool) {
	if !p.expectPeek(TOKEN_LBRACKET) {
		return nil, false
	}
	allowed := []string{}
	p.nextToken()
	for !p.currentTokenIs(TOKEN_RBRACKET) {
		if !p.currentTokenIs(TOKEN_STRING) {
			p.errorf("expected string in allowed list, got %s at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column)
			return nil, false
		}
		allowed = append(allowed, p.current.Value)
		p.nextToken()
		if p.currentTokenIs(TOKEN_COMMA) {
			p.nextToken()
		} else if !p.currentTokenIs(TOKEN_RBRACKET) {
			p.errorf("expected ',' or ']' in allowed list, got %s at %d:%d",
				tokenNames[p.current.Type], p.current.Line, p.current.Column)
			return nil, false
		}
	}
	p.nextToken()
	return allowed, true
}

// parseRange parses range [min, max] where either bound may be * for unbounded
func (p *Parser) parseRange() (*float64, *float64, bool) {
	if !p.expectPeek(TOKEN_LBRACKET) {
		return nil, nil, false
	}
	p.nextToken()
	min, ok := p.parseBound()
	if !ok {
		return nil, nil, false
	}
	if !p.expectPeek(TOKEN_COMMA) {
		return nil, nil, false
	}
	p.nextToken()
	max, ok := p.parseBound()
	if !ok {
		return nil, nil, false
	}
	if !p.expectPeek(TOKEN_RBRACKET) {
		return nil, nil, false
	}
	p.nextToken()
	return min, max, true
}

// parseBound parses one range bound at the current token without advancing past it
func (p *Parser) parseBound() (*float64, bool) {
	switch {
	case p.currentTokenIs(TOKEN_STAR):
		return nil, true
	case p.currentTokenIs(TOKEN_NUMBER):
		f, err := strconv.ParseFloat(p.current.Value, 64)
		if err != nil {
			p.errorf("invalid range bound %q at %d:%d", p.current.Value, p.current.Line, p.current.Column)
			return nil, false
		}
		return &f, true
	default:
		p.errorf("expected number or '*' in range, got %s at %d:%d",
			tokenNames[p.current.Type], p.current.Line, p.current.Column)
		return nil, false
	}
}

// parseRelationship parses "relationship NAME [doc "..."]"
func (p *Parser) parseRelationship() *RelationshipAST {
	relationship := &RelationshipAST{Line: p.current.Line}

	p.nextToken()
	name, ok := p.parseName()
	if !ok {
		return nil
	}
	relationship.Name = name
	p.nextToken()

	if p.currentTokenIs(TOKEN_DOC) {
		if !p.expectPeek(TOKEN_STRING) {
			return nil
		}
		relationship.Doc = p.current.Value
		p.nextToken()
	}
	return relationship
}

// parseRuleExpression parses a rule() expression
func (p *Parser) parseRuleExpression() AppliesToAST {
	// Expect (
	if !p.expectPeek(TOKEN_LPAREN) {
		return nil
	}

	// Read the CEL expression until closing )
	p.nextToken()
	var expressionParts []string
	parenCount := 1
	prevToken := &Token{Type: TOKEN_LPAREN}

	for parenCount > 0 && !p.currentTokenIs(TOKEN_EOF) {
		if p.currentTokenIs(TOKEN_LPAREN) {
			parenCount++
		} else if p.currentTokenIs(TOKEN_RPAREN) {
			parenCount--
			if parenCount == 0 {
				break
			}
		}

		// Add token value with proper spacing and quoting
		tokenValue := p.current.Value

		// Add quotes back for string literals
		if p.current.Type == TOKEN_STRING {
			tokenValue = strconv.Quote(tokenValue)
		}

		// Add space before token if needed
		if len(expressionParts) > 0 && needsSpaceBefore(prevToken, p.current) {
			expressionParts = append(expressionParts, " ")
		}

		expressionParts = append(expressionParts, tokenValue)
		prevToken = p.current
		p.nextToken()
	}

	if !p.currentTokenIs(TOKEN_RPAREN) {
		p.errorf("expected ')' at end of rule expression")
		return nil
	}

	expression := strings.Join(expressionParts, "")
	if expression == "" {
		p.errorf("empty rule expression at %d:%d", p.current.Line, p.current.Column)
		return nil
	}

	p.nextToken()
	return &RuleAppliesToAST{
		Expression: expression,
	}
}

// needsSpaceBefore determines if a space is needed between two tokens
func needsSpaceBefore(prev, current *Token) bool {
	// No space after opening paren or before closing paren
	if prev.Type == TOKEN_LPAREN || current.Type == TOKEN_RPAREN {
		return false
	}
	// Calls: size(x), typeName.endsWith("x")
	if current.Type == TOKEN_LPAREN && prev.IsWord() {
		return false
	}
	// No space before/after dot
	if prev.Type == TOKEN_DOT || current.Type == TOKEN_DOT {
		return false
	}
	// No space before comma
	if current.Type == TOKEN_COMMA {
		return false
	}
	// Unary not binds to its operand
	if prev.Type == TOKEN_EXCLAMATION {
		return false
	}
	// No space inside brackets
	if prev.Type == TOKEN_LBRACKET || current.Type == TOKEN_RBRACKET {
		return false
	}
	// Default: add space between tokens
	return true
}
