package types

import (
	"encoding/json"
	"fmt"
)

// DefaultPolicyOrder is assigned to policies created without an order
const DefaultPolicyOrder = 100

// TierMetadata is the stored metadata of a policy tier
type TierMetadata struct {
	Order *int `json:"order,omitempty"`
}

// Policy is a selector based rule set within a tier. Policies in a tier
// are applied by ascending order.
type Policy struct {
	Tier     string
	Name     string
	Selector string
	Order    int
	Rules    RuleSet
}

// NewPolicy returns a policy allowing all traffic for the endpoints
// selected by selector
func NewPolicy(tier, name, selector string) (*Policy, error) {
	if !ValidateCharacters(tier) {
		return nil, invalid("tier", tier, "only letters, digits, '_', '.' and '-' are allowed")
	}
	if !ValidateCharacters(name) {
		return nil, invalid("policy name", name, "only letters, digits, '_', '.' and '-' are allowed")
	}
	return &Policy{
		Tier:     tier,
		Name:     name,
		Selector: selector,
		Order:    DefaultPolicyOrder,
		Rules:    AllowAllRules(name),
	}, nil
}

type policyJSON struct {
	Selector      string `json:"selector"`
	Order         int    `json:"order"`
	InboundRules  []Rule `json:"inbound_rules"`
	OutboundRules []Rule `json:"outbound_rules"`
}

// MarshalJSON emits the stored form. Tier and name are part of the key.
func (p Policy) MarshalJSON() ([]byte, error) {
	out := policyJSON{
		Selector:      p.Selector,
		Order:         p.Order,
		InboundRules:  p.Rules.InboundRules,
		OutboundRules: p.Rules.OutboundRules,
	}
	if out.InboundRules == nil {
		out.InboundRules = []Rule{}
	}
	if out.OutboundRules == nil {
		out.OutboundRules = []Rule{}
	}
	return json.Marshal(out)
}

// ParsePolicy decodes the policy stored for tier and name
func ParsePolicy(tier, name, data string) (*Policy, error) {
	var in policyJSON
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, fmt.Errorf("failed to decode policy %s/%s: %w", tier, name, err)
	}
	p := &Policy{
		Tier:     tier,
		Name:     name,
		Selector: in.Selector,
		Order:    in.Order,
		Rules: RuleSet{
			ID:            name,
			InboundRules:  in.InboundRules,
			OutboundRules: in.OutboundRules,
		},
	}
	if p.Rules.InboundRules == nil {
		p.Rules.InboundRules = []Rule{}
	}
	if p.Rules.OutboundRules == nil {
		p.Rules.OutboundRules = []Rule{}
	}
	return p, nil
}

func (p *Policy) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Policy) Validate() error {
	if !ValidateCharacters(p.Tier) {
		return invalid("tier", p.Tier, "only letters, digits, '_', '.' and '-' are allowed")
	}
	if !ValidateCharacters(p.Name) {
		return invalid("policy name", p.Name, "only letters, digits, '_', '.' and '-' are allowed")
	}
	return p.Rules.Validate()
}

func (p *Policy) Equal(other *Policy) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Tier == other.Tier &&
		p.Name == other.Name &&
		p.Selector == other.Selector &&
		p.Order == other.Order &&
		p.Rules.Equal(&other.Rules)
}

func (p *Policy) Copy() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.Rules = *p.Rules.Copy()
	return &c
}
