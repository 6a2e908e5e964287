package types

import (
	"encoding/json"
	"maps"
	"slices"
)

// Profile is a named policy unit: the tags its member endpoints carry and
// the rules applied to them. Tags and rules are stored under separate keys.
type Profile struct {
	Name   string
	Tags   []string
	Rules  RuleSet
	Labels map[string]string
}

// NewProfile returns an empty profile with rules bound to name
func NewProfile(name string) (*Profile, error) {
	if !ValidateCharacters(name) {
		return nil, invalid("profile name", name, "only letters, digits, '_', '.' and '-' are allowed")
	}
	return &Profile{
		Name:   name,
		Tags:   []string{},
		Rules:  RuleSet{ID: name, InboundRules: []Rule{}, OutboundRules: []Rule{}},
		Labels: map[string]string{},
	}, nil
}

// AddTag adds tag to the profile's tag set
func (p *Profile) AddTag(tag string) error {
	if !ValidateCharacters(tag) {
		return invalid("tag", tag, "only letters, digits, '_', '.' and '-' are allowed")
	}
	if !slices.Contains(p.Tags, tag) {
		p.Tags = append(p.Tags, tag)
		slices.Sort(p.Tags)
	}
	return nil
}

// RemoveTag removes tag, reporting whether it was present
func (p *Profile) RemoveTag(tag string) bool {
	i := slices.Index(p.Tags, tag)
	if i < 0 {
		return false
	}
	p.Tags = slices.Delete(p.Tags, i, i+1)
	return true
}

// SetTags replaces the tag set, validating every tag first
func (p *Profile) SetTags(tags []string) error {
	for _, tag := range tags {
		if !ValidateCharacters(tag) {
			return invalid("tag", tag, "only letters, digits, '_', '.' and '-' are allowed")
		}
	}
	p.Tags = normalizeTags(tags)
	return nil
}

// TagsJSON is the stored form of the tag set
func (p *Profile) TagsJSON() (string, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseTags decodes a stored tag set
func ParseTags(data string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, err
	}
	return normalizeTags(tags), nil
}

// LabelsJSON is the stored form of the profile labels
func (p *Profile) LabelsJSON() (string, error) {
	labels := p.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Profile) Equal(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Name == other.Name &&
		slices.Equal(p.Tags, other.Tags) &&
		p.Rules.Equal(&other.Rules) &&
		maps.Equal(p.Labels, other.Labels)
}

func (p *Profile) Copy() *Profile {
	if p == nil {
		return nil
	}
	return &Profile{
		Name:   p.Name,
		Tags:   slices.Clone(p.Tags),
		Rules:  *p.Rules.Copy(),
		Labels: maps.Clone(p.Labels),
	}
}

// normalizeTags sorts and deduplicates tags so sets compare and encode
// deterministically
func normalizeTags(tags []string) []string {
	out := slices.Clone(tags)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
