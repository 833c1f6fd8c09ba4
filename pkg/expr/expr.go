// Package expr implements the restricted boolean grammar used by workflow
// conditions: comparisons and and/or/not combinators over declared context
// variables. It is deliberately not a general-purpose evaluator; there are no
// function calls, assignments or arithmetic.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrMissingVariable indicates the expression referenced a context binding
// that does not exist.
var ErrMissingVariable = errors.New("variable not declared in context")

// ParseError reports a malformed expression with its offending position.
type ParseError struct {
	Expression string
	Position   int
	Message    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid expression %q at position %d: %s", e.Expression, e.Position, e.Message)
}

// Evaluate parses and evaluates the expression against the given variables.
// The result must be boolean; anything else is an error.
func Evaluate(expression string, vars map[string]any) (bool, error) {
	node, err := Parse(expression)
	if err != nil {
		return false, err
	}

	value, err := node.eval(vars)
	if err != nil {
		return false, err
	}

	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q is not boolean (got %T)", expression, value)
	}

	return result, nil
}

// Parse compiles the expression without evaluating it, so definitions can be
// checked at load time rather than at dispatch time.
func Parse(expression string) (Node, error) {
	tokens, err := lex(expression)
	if err != nil {
		return nil, err
	}

	p := &parser{expression: expression, tokens: tokens}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.atEnd() {
		return nil, p.errorf("unexpected token %q", p.peek().text)
	}

	return node, nil
}

// Node is a compiled expression fragment.
type Node interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct{ value any }

func (n literalNode) eval(map[string]any) (any, error) { return n.value, nil }

type identNode struct{ name string }

func (n identNode) eval(vars map[string]any) (any, error) {
	value, ok := lookup(vars, n.name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", n.name, ErrMissingVariable)
	}

	return value, nil
}

type notNode struct{ operand Node }

func (n notNode) eval(vars map[string]any) (any, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}

	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("operand of 'not' is not boolean (got %T)", value)
	}

	return !b, nil
}

type boolNode struct {
	op          string // "and" | "or"
	left, right Node
}

func (n boolNode) eval(vars map[string]any) (any, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}

	lb, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("left operand of %q is not boolean (got %T)", n.op, left)
	}

	// Short-circuit.
	if n.op == "and" && !lb {
		return false, nil
	}

	if n.op == "or" && lb {
		return true, nil
	}

	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	rb, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("right operand of %q is not boolean (got %T)", n.op, right)
	}

	return rb, nil
}

type compareNode struct {
	op          string
	left, right Node
}

func (n compareNode) eval(vars map[string]any) (any, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}

	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	return compare(n.op, left, right)
}

func compare(op string, left, right any) (bool, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)

	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}

	ls, lok := left.(string)
	rs, rok := right.(string)

	if lok && rok {
		switch op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}

	// Equality is defined for every remaining type pair; ordering is not.
	switch op {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	default:
		return false, fmt.Errorf("cannot order %T and %T with %q", left, right, op)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// lookup resolves dotted paths ("result.count") through nested maps.
func lookup(vars map[string]any, name string) (any, bool) {
	parts := strings.Split(name, ".")

	var current any = vars

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// --- lexer ---

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(expression string) ([]token, error) {
	var tokens []token

	runes := []rune(expression)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokenLeftParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRightParen, ")", i})
			i++
		case r == '\'' || r == '"':
			quote := r
			start := i
			i++

			var sb strings.Builder
			for i < len(runes) && runes[i] != quote {
				sb.WriteRune(runes[i])
				i++
			}

			if i >= len(runes) {
				return nil, &ParseError{expression, start, "unterminated string literal"}
			}

			i++ // closing quote
			tokens = append(tokens, token{tokenString, sb.String(), start})
		case strings.ContainsRune("=!<>&|", r):
			start := i

			var sb strings.Builder
			for i < len(runes) && strings.ContainsRune("=!<>&|", runes[i]) {
				sb.WriteRune(runes[i])
				i++
			}

			op := sb.String()
			switch op {
			case "==", "!=", "<", "<=", ">", ">=", "&&", "||", "!":
				tokens = append(tokens, token{tokenOperator, op, start})
			default:
				return nil, &ParseError{expression, start, fmt.Sprintf("unknown operator %q", op)}
			}
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++

			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{tokenNumber, string(runes[start:i]), start})
		case unicode.IsLetter(r) || r == '_':
			start := i

			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{tokenIdent, string(runes[start:i]), start})
		default:
			return nil, &ParseError{expression, i, fmt.Sprintf("unexpected character %q", r)}
		}
	}

	return tokens, nil
}

// --- parser (recursive descent, precedence: or < and < not < comparison) ---

type parser struct {
	expression string
	tokens     []token
	pos        int
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.matchKeyword("or") || p.matchOperator("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = boolNode{op: "or", left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.matchKeyword("and") || p.matchOperator("&&") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = boolNode{op: "and", left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.matchKeyword("not") || p.matchOperator("!") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return notNode{operand: operand}, nil
	}

	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.atEnd() || p.peek().kind != tokenOperator {
		return left, nil
	}

	op := p.peek().text
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		p.pos++
	default:
		return left, nil
	}

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	return compareNode{op: op, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.atEnd() {
		return nil, p.errorf("unexpected end of expression")
	}

	tok := p.peek()

	switch tok.kind {
	case tokenLeftParen:
		p.pos++

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.atEnd() || p.peek().kind != tokenRightParen {
			return nil, p.errorf("missing closing parenthesis")
		}

		p.pos++

		return inner, nil
	case tokenNumber:
		p.pos++

		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.text)
		}

		return literalNode{value: value}, nil
	case tokenString:
		p.pos++

		return literalNode{value: tok.text}, nil
	case tokenIdent:
		p.pos++

		switch tok.text {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null", "nil":
			return literalNode{value: nil}, nil
		default:
			return identNode{name: tok.text}, nil
		}
	default:
		return nil, p.errorf("unexpected token %q", tok.text)
	}
}

func (p *parser) matchKeyword(keyword string) bool {
	if !p.atEnd() && p.peek().kind == tokenIdent && p.peek().text == keyword {
		p.pos++

		return true
	}

	return false
}

func (p *parser) matchOperator(op string) bool {
	if !p.atEnd() && p.peek().kind == tokenOperator && p.peek().text == op {
		p.pos++

		return true
	}

	return false
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) errorf(format string, args ...any) error {
	pos := len(p.expression)
	if !p.atEnd() {
		pos = p.peek().pos
	}

	return &ParseError{Expression: p.expression, Position: pos, Message: fmt.Sprintf(format, args...)}
}
