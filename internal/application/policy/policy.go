package policy

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/stream"
)

// Policy gates stream creation with an operator-configured boolean
// expression. An empty expression admits everything. Expressions see the
// parameters of the creation request, e.g.
//
//	amount <= 100000000000 && duration >= 60
//
// where amount is in octas, units in display units, and duration in seconds.
type Policy struct {
	raw  string
	expr *govaluate.EvaluableExpression
}

// New parses the creation policy expression. "true"/"false" literals and the
// empty string are accepted without compiling an expression.
func New(expression string) (*Policy, error) {
	raw := strings.TrimSpace(expression)
	switch strings.ToLower(raw) {
	case "", "true":
		return &Policy{raw: "true"}, nil
	case "false":
		return &Policy{raw: "false"}, nil
	}
	expr, err := govaluate.NewEvaluableExpression(raw)
	if err != nil {
		return nil, fmt.Errorf("parse creation policy: %w", err)
	}
	return &Policy{raw: raw, expr: expr}, nil
}

// String returns the configured expression.
func (p *Policy) String() string {
	if p == nil {
		return "true"
	}
	return p.raw
}

// AllowCreate evaluates the policy against one creation request. A nil
// policy admits everything. Violations surface as ErrInvalidTerms so callers
// treat them like any other bad-terms rejection.
func (p *Policy) AllowCreate(sender, recipient string, total amount.Amount, durationSeconds int64) error {
	if p == nil || p.raw == "true" {
		return nil
	}
	if p.raw == "false" {
		return fmt.Errorf("%w: creation policy rejects all streams", stream.ErrInvalidTerms)
	}
	params := map[string]interface{}{
		"sender":    sender,
		"recipient": recipient,
		"amount":    float64(total),
		"units":     total.Units(),
		"duration":  float64(durationSeconds),
	}
	result, err := p.expr.Evaluate(params)
	if err != nil {
		return fmt.Errorf("evaluate creation policy: %w", err)
	}
	allowed, ok := result.(bool)
	if !ok {
		return fmt.Errorf("creation policy did not evaluate to boolean: %q", p.raw)
	}
	if !allowed {
		return fmt.Errorf("%w: rejected by creation policy %q", stream.ErrInvalidTerms, p.raw)
	}
	return nil
}
