package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Action is the verdict of a matching rule
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Protocols accepted by name in a rule. Any IP protocol number between 1 and
// 255 is accepted as well.
var Protocols = []string{"tcp", "udp", "icmp", "icmpv6", "sctp", "udplite"}

const maxICMPType = 254

// Rule is one match and action clause of a rule set. Unset match fields
// match anything and are omitted from the encoding.
type Rule struct {
	Action   Action `json:"action"`
	Protocol string `json:"protocol,omitempty"`

	SrcTag   string `json:"src_tag,omitempty"`
	SrcNet   *Net   `json:"src_net,omitempty"`
	SrcPorts []Port `json:"src_ports,omitempty"`

	DstTag   string `json:"dst_tag,omitempty"`
	DstNet   *Net   `json:"dst_net,omitempty"`
	DstPorts []Port `json:"dst_ports,omitempty"`

	ICMPType *int `json:"icmp_type,omitempty"`
	ICMPCode *int `json:"icmp_code,omitempty"`
}

// Validate checks every field that is set
func (r *Rule) Validate() error {
	switch r.Action {
	case ActionAllow, ActionDeny:
	default:
		return invalid("action", string(r.Action), "must be %q or %q", ActionAllow, ActionDeny)
	}

	if r.Protocol != "" && !validProtocol(r.Protocol) {
		return invalid("protocol", r.Protocol, "must be one of %s or a protocol number", strings.Join(Protocols, ", "))
	}

	for _, tag := range []struct{ field, value string }{
		{"src_tag", r.SrcTag},
		{"dst_tag", r.DstTag},
	} {
		if tag.value != "" && !ValidateCharacters(tag.value) {
			return invalid(tag.field, tag.value, "only letters, digits, '_', '.' and '-' are allowed")
		}
	}

	for _, net := range []struct {
		field string
		value *Net
	}{
		{"src_net", r.SrcNet},
		{"dst_net", r.DstNet},
	} {
		if net.value != nil && !net.value.IsValid() {
			return invalid(net.field, nil, "not a valid network")
		}
	}

	for _, port := range append(slices.Clone(r.SrcPorts), r.DstPorts...) {
		if err := port.Validate(); err != nil {
			return err
		}
	}

	if r.ICMPType != nil && (*r.ICMPType < 0 || *r.ICMPType > maxICMPType) {
		return invalid("icmp_type", *r.ICMPType, "must be between 0 and %d", maxICMPType)
	}
	if r.ICMPCode != nil {
		if r.ICMPType == nil {
			return invalid("icmp_code", *r.ICMPCode, "requires icmp_type")
		}
		if *r.ICMPCode < 0 || *r.ICMPCode > 255 {
			return invalid("icmp_code", *r.ICMPCode, "must be between 0 and 255")
		}
	}

	return nil
}

func validProtocol(p string) bool {
	if slices.Contains(Protocols, p) {
		return true
	}
	n, err := strconv.Atoi(p)
	return err == nil && n >= 1 && n <= 255
}

// UnmarshalJSON decodes and validates a rule, rejecting unknown fields
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var decoded plain

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	rule := Rule(decoded)
	if err := rule.Validate(); err != nil {
		return err
	}
	*r = rule
	return nil
}

// Equal reports whether r and other set exactly the same fields to the same
// values
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Action == other.Action &&
		r.Protocol == other.Protocol &&
		r.SrcTag == other.SrcTag &&
		r.DstTag == other.DstTag &&
		equalNetPtr(r.SrcNet, other.SrcNet) &&
		equalNetPtr(r.DstNet, other.DstNet) &&
		slices.Equal(r.SrcPorts, other.SrcPorts) &&
		slices.Equal(r.DstPorts, other.DstPorts) &&
		equalIntPtr(r.ICMPType, other.ICMPType) &&
		equalIntPtr(r.ICMPCode, other.ICMPCode)
}

// Copy returns a deep copy of r
func (r *Rule) Copy() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.SrcNet = copyPtr(r.SrcNet)
	c.DstNet = copyPtr(r.DstNet)
	c.SrcPorts = slices.Clone(r.SrcPorts)
	c.DstPorts = slices.Clone(r.DstPorts)
	c.ICMPType = copyPtr(r.ICMPType)
	c.ICMPCode = copyPtr(r.ICMPCode)
	return &c
}

// String renders the rule as a single clause, e.g.
// "allow tcp from ports 80 tag web to cidr 10.0.0.0/8"
func (r *Rule) String() string {
	parts := []string{string(r.Action)}
	if r.Protocol != "" {
		parts = append(parts, r.Protocol)
	}
	if r.ICMPType != nil {
		parts = append(parts, "type", strconv.Itoa(*r.ICMPType))
	}
	if r.ICMPCode != nil {
		parts = append(parts, "code", strconv.Itoa(*r.ICMPCode))
	}
	parts = append(parts, direction("from", r.SrcPorts, r.SrcTag, r.SrcNet)...)
	parts = append(parts, direction("to", r.DstPorts, r.DstTag, r.DstNet)...)
	return strings.Join(parts, " ")
}

func direction(word string, ports []Port, tag string, net *Net) []string {
	var parts []string
	if len(ports) > 0 {
		parts = append(parts, "ports", joinPorts(ports))
	}
	if tag != "" {
		parts = append(parts, "tag", tag)
	}
	if net != nil {
		parts = append(parts, "cidr", net.String())
	}
	if len(parts) == 0 {
		return nil
	}
	return append([]string{word}, parts...)
}

func equalNetPtr(a, b *Net) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a helper for the optional integer fields of Rule
func IntPtr(v int) *int {
	return &v
}
