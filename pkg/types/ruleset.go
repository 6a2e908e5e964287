package types

import (
	"encoding/json"
	"slices"
)

// RuleSet is the ordered inbound and outbound rules of a profile or policy.
// Rules are evaluated in order.
type RuleSet struct {
	ID            string `json:"id"`
	InboundRules  []Rule `json:"inbound_rules"`
	OutboundRules []Rule `json:"outbound_rules"`
}

// DefaultProfileRules allows inbound traffic from members of the profile
// and all outbound traffic.
func DefaultProfileRules(name string) RuleSet {
	return RuleSet{
		ID:            name,
		InboundRules:  []Rule{{Action: ActionAllow, SrcTag: name}},
		OutboundRules: []Rule{{Action: ActionAllow}},
	}
}

// AllowAllRules allows all traffic in both directions
func AllowAllRules(id string) RuleSet {
	return RuleSet{
		ID:            id,
		InboundRules:  []Rule{{Action: ActionAllow}},
		OutboundRules: []Rule{{Action: ActionAllow}},
	}
}

func (rs *RuleSet) Validate() error {
	for _, rules := range [][]Rule{rs.InboundRules, rs.OutboundRules} {
		for i := range rules {
			if err := rules[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarshalJSON always emits both rule lists, empty when unset
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	type plain RuleSet
	out := plain(rs)
	if out.InboundRules == nil {
		out.InboundRules = []Rule{}
	}
	if out.OutboundRules == nil {
		out.OutboundRules = []Rule{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a rule set; missing lists decode as empty
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	type plain RuleSet
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.InboundRules == nil {
		decoded.InboundRules = []Rule{}
	}
	if decoded.OutboundRules == nil {
		decoded.OutboundRules = []Rule{}
	}
	*rs = RuleSet(decoded)
	return nil
}

// ParseRuleSet decodes a stored rule set
func ParseRuleSet(data string) (*RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// JSON returns the canonical encoding
func (rs *RuleSet) JSON() (string, error) {
	data, err := json.Marshal(rs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (rs *RuleSet) Equal(other *RuleSet) bool {
	if rs == nil || other == nil {
		return rs == other
	}
	return rs.ID == other.ID &&
		equalRules(rs.InboundRules, other.InboundRules) &&
		equalRules(rs.OutboundRules, other.OutboundRules)
}

func (rs *RuleSet) Copy() *RuleSet {
	if rs == nil {
		return nil
	}
	return &RuleSet{
		ID:            rs.ID,
		InboundRules:  copyRules(rs.InboundRules),
		OutboundRules: copyRules(rs.OutboundRules),
	}
}

func equalRules(a, b []Rule) bool {
	return slices.EqualFunc(a, b, func(x, y Rule) bool { return x.Equal(&y) })
}

func copyRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i := range rules {
		out[i] = *rules[i].Copy()
	}
	return out
}
