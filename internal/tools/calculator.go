// Package tools holds the functions the generation backend may call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai/jsonschema"

	"ragqa/internal/domain"
)

const (
	// MaxDepth bounds parenthesis and unary-sign nesting.
	MaxDepth = 32
	// MaxLength bounds the expression length in runes.
	MaxLength = 256
)

var (
	ErrTooDeep    = errors.New("expression nested too deeply")
	ErrTooLong    = errors.New("expression too long")
	ErrSyntax     = errors.New("syntax error")
	errNotANumber = errors.New("result is not a finite number")
)

// Calculator evaluates arithmetic expressions over + - * / and parentheses.
type Calculator struct{}

func (Calculator) Name() string { return "calculator" }

func (Calculator) Description() string {
	return "Evaluate an arithmetic expression using + - * / and parentheses, e.g. (2 + 3) * 4."
}

// Parameters returns the JSON schema of the tool arguments.
func (Calculator) Parameters() any {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"expression": {
				Type:        jsonschema.String,
				Description: "The arithmetic expression to evaluate",
			},
		},
		Required: []string{"expression"},
	}
}

// Call decodes {"expression": "..."} and evaluates it. A bare string is
// accepted as the expression itself.
func (c Calculator) Call(_ context.Context, arguments string) string {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.Expression == "" {
		var bare string
		if json.Unmarshal([]byte(arguments), &bare) == nil {
			args.Expression = bare
		} else if err != nil {
			args.Expression = arguments
		}
	}
	return c.Evaluate(args.Expression)
}

// Evaluate returns "Result: <value>" or a readable error string.
func (Calculator) Evaluate(expr string) string {
	v, err := Eval(expr)
	switch {
	case err == nil:
		return "Result: " + strconv.FormatFloat(v, 'g', -1, 64)
	case errors.Is(err, domain.ErrUnsafeExpression):
		return "Error: " + err.Error()
	default:
		return "Calculation error: " + err.Error()
	}
}

// Eval parses and evaluates expr. Characters outside digits, whitespace,
// + - * / ( ) and . fail with domain.ErrUnsafeExpression before parsing.
func Eval(expr string) (float64, error) {
	for _, r := range expr {
		if !allowed(r) {
			return 0, fmt.Errorf("%w: %q", domain.ErrUnsafeExpression, expr)
		}
	}
	if len([]rune(expr)) > MaxLength {
		return 0, ErrTooLong
	}
	p := &parser{src: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotANumber
	}
	return v, nil
}

func allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune("+-*/().", r)
}

// parser is a recursive-descent evaluator:
//
//	expr    := term (('+'|'-') term)*
//	term    := unary (('*'|'/') unary)*
//	unary   := ('+'|'-') unary | primary
//	primary := number | '(' expr ')'
type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		r, n := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += n
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return ErrTooDeep
	}
	return nil
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, domain.ErrDivisionByZero
		}
		left /= right
	}
}

func (p *parser) parseUnary() (float64, error) {
	op := p.peek()
	if op != '+' && op != '-' {
		return p.parsePrimary()
	}
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer func() { p.depth-- }()
	p.pos++
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if op == '-' {
		v = -v
	}
	return v, nil
}

func (p *parser) parsePrimary() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer func() { p.depth-- }()
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, p.src[start:p.pos])
		}
		return v, nil
	case c == 0:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, p.pos)
	}
}
