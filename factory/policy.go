/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts a JSON refund/payout policy into booking.Policy. Operators can
  tune how much a learner gets back when a booking ends early, and how a
  completed booking is settled, without code changes.

JSON SCHEMA:
  {
    "cancellation": {
      "pending": {"refund_fraction": "1",   "deposit_on_held": "refunded"},
      "approve": {"refund_fraction": "0",   "deposit_on_held": "forfeit"}
    },
    "rejection":  {"refund_fraction": "0", "deposit_on_held": "refunded"},
    "expiry":     {"refund_fraction": "1", "deposit_on_held": "refunded"},
    "completion_payout": "remainder"
  }

  Omitted sections keep the defaults of booking.DefaultPolicy. Fractions are
  strings or numbers in [0, 1].

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)
  service := booking.NewService(store, booking.WithPolicy(policy))

SEE ALSO:
  - booking/policy.go: Policy type definition
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	Cancellation     map[string]RuleJSON `json:"cancellation,omitempty"`
	Rejection        *RuleJSON           `json:"rejection,omitempty"`
	Expiry           *RuleJSON           `json:"expiry,omitempty"`
	CompletionPayout string              `json:"completion_payout,omitempty"` // remainder, lump_sum
}

// RuleJSON represents one cancellation rule.
type RuleJSON struct {
	RefundFraction decimal.Decimal `json:"refund_fraction"`
	DepositOnHeld  string          `json:"deposit_on_held,omitempty"` // refunded, forfeit, used
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to booking.Policy.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (booking.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return booking.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads a policy file. An empty path yields the default policy.
func (f *PolicyFactory) LoadFile(path string) (booking.Policy, error) {
	if path == "" {
		return booking.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return booking.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// FromJSON overlays pj on the default policy and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (booking.Policy, error) {
	policy := booking.DefaultPolicy()

	for status, rj := range pj.Cancellation {
		policy.Cancellation[booking.Status(status)] = parseRule(rj)
	}
	if pj.Rejection != nil {
		policy.Rejection = parseRule(*pj.Rejection)
	}
	if pj.Expiry != nil {
		policy.Expiry = parseRule(*pj.Expiry)
	}
	if pj.CompletionPayout != "" {
		policy.Completion = booking.PayoutMode(pj.CompletionPayout)
	}

	if err := policy.Validate(); err != nil {
		return booking.Policy{}, err
	}
	return policy, nil
}

// ToJSON renders a policy in the schema above.
func (f *PolicyFactory) ToJSON(p booking.Policy) PolicyJSON {
	pj := PolicyJSON{
		Cancellation:     make(map[string]RuleJSON, len(p.Cancellation)),
		CompletionPayout: string(p.Completion),
	}
	for status, r := range p.Cancellation {
		pj.Cancellation[string(status)] = ruleJSON(r)
	}
	rejection, expiry := ruleJSON(p.Rejection), ruleJSON(p.Expiry)
	pj.Rejection = &rejection
	pj.Expiry = &expiry
	return pj
}

// DefaultPolicyJSON returns the default policy as JSON.
func DefaultPolicyJSON() string {
	data, _ := json.MarshalIndent(NewPolicyFactory().ToJSON(booking.DefaultPolicy()), "", "  ")
	return string(data)
}

func parseRule(rj RuleJSON) booking.CancellationRule {
	return booking.CancellationRule{
		RefundFraction: rj.RefundFraction,
		DepositOnHeld:  booking.DepositStatus(rj.DepositOnHeld),
	}
}

func ruleJSON(r booking.CancellationRule) RuleJSON {
	return RuleJSON{RefundFraction: r.RefundFraction, DepositOnHeld: string(r.DepositOnHeld)}
}
