package paths

import (
	"fmt"
	"strings"
)

// Template matches store keys against a fixed shape such as
// "/calico/bgp/v1/host/{hostname}/peer_v4/{ip}". A "{name}" segment captures
// exactly one key segment; a final "{name...}" segment captures the
// remainder of the key, slashes included.
type Template struct {
	raw      string
	segments []segment
}

type segment struct {
	literal string
	capture string
	rest    bool
}

// ParseTemplate compiles pattern into a Template
func ParseTemplate(pattern string) (*Template, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("template %q must be absolute", pattern)
	}

	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	t := &Template{raw: pattern}
	seen := make(map[string]bool)

	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("template %q has an empty segment", pattern)
		}
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			t.segments = append(t.segments, segment{literal: part})
			continue
		}

		name := part[1 : len(part)-1]
		rest := strings.HasSuffix(name, "...")
		name = strings.TrimSuffix(name, "...")
		if name == "" {
			return nil, fmt.Errorf("template %q has an unnamed capture", pattern)
		}
		if rest && i != len(parts)-1 {
			return nil, fmt.Errorf("template %q: %s... must be the last segment", pattern, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("template %q captures %s twice", pattern, name)
		}
		seen[name] = true
		t.segments = append(t.segments, segment{capture: name, rest: rest})
	}

	return t, nil
}

// MustTemplate is ParseTemplate for package level templates
func MustTemplate(pattern string) *Template {
	t, err := ParseTemplate(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Match reports whether key has the template's shape and returns the
// captured segments by name.
func (t *Template) Match(key string) (map[string]string, bool) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	captures := make(map[string]string)

	for i, seg := range t.segments {
		if seg.rest {
			if i >= len(parts) {
				return nil, false
			}
			captures[seg.capture] = strings.Join(parts[i:], "/")
			return captures, true
		}
		if i >= len(parts) || parts[i] == "" {
			return nil, false
		}
		if seg.capture != "" {
			captures[seg.capture] = parts[i]
			continue
		}
		if parts[i] != seg.literal {
			return nil, false
		}
	}

	if len(parts) != len(t.segments) {
		return nil, false
	}
	return captures, true
}

func (t *Template) String() string {
	return t.raw
}

// Templates for the keys that aggregate scans classify
var (
	EndpointTemplate = MustTemplate(V1Root + "/host/{hostname}/workload/{orchestrator}/{workload}/endpoint/{endpoint}")

	BGPHostIPv4Template   = MustTemplate(BGPRoot + "/host/{hostname}/ip_addr_v4")
	BGPHostIPv6Template   = MustTemplate(BGPRoot + "/host/{hostname}/ip_addr_v6")
	BGPHostASTemplate     = MustTemplate(BGPRoot + "/host/{hostname}/as_num")
	BGPHostPeerV4Template = MustTemplate(BGPRoot + "/host/{hostname}/peer_v4/{ip}")
	BGPHostPeerV6Template = MustTemplate(BGPRoot + "/host/{hostname}/peer_v6/{ip}")
)
