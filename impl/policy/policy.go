// Package policy decides whether an image reference is admitted. Local images (those whose
// registry host is one of the server's own host names) are allowed unless explicitly denied.
// Remote images are denied unless explicitly allowed. Each side keeps exact image names and
// prefixes as two separate matchers.
package policy

import (
	"fmt"
	"strings"

	"github.com/regfront/regfront/impl/config"

	"github.com/distribution/reference"
)

// Decision is the outcome of matching one image reference
type Decision struct {
	Image   string
	Allowed bool
	Local   bool
	Reason  string
}

// rules holds one side of the policy
type rules struct {
	images   map[string]struct{}
	prefixes []string
}

func newRules(images []string, prefixes []string) rules {
	r := rules{
		images:   make(map[string]struct{}, len(images)),
		prefixes: make([]string, 0, len(prefixes)),
	}
	for _, img := range images {
		r.images[img] = struct{}{}
	}
	for _, p := range prefixes {
		if p != "" {
			r.prefixes = append(r.prefixes, p)
		}
	}
	return r
}

// match returns the first rule matching any of the passed candidate strings. Every rule is
// tested independently so the result does not depend on the order of the lists.
func (r rules) match(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if _, ok := r.images[c]; ok {
			return "image " + c, true
		}
	}
	for _, c := range candidates {
		for _, p := range r.prefixes {
			if strings.HasPrefix(c, p) {
				return "prefix " + p, true
			}
		}
	}
	return "", false
}

// Matcher is immutable once created and safe for concurrent use
type Matcher struct {
	hostNames map[string]struct{}
	allow     rules
	deny      rules
}

// New creates a Matcher from the host names the server answers to and the admission policy
func New(hostNames []string, p config.AdmissionPolicy) *Matcher {
	m := &Matcher{
		hostNames: make(map[string]struct{}, len(hostNames)),
		allow:     newRules(p.AllowImages, p.AllowPrefixes),
		deny:      newRules(p.DenyImages, p.DenyPrefixes),
	}
	for _, h := range hostNames {
		m.hostNames[strings.ToLower(h)] = struct{}{}
	}
	return m
}

// IsLocal returns true if the passed registry host refers to this server
func (m *Matcher) IsLocal(host string) bool {
	_, ok := m.hostNames[strings.ToLower(host)]
	return ok
}

// Decide matches the passed image reference. Local images are matched by repository path
// plus tag or digest, e.g. 'myorg/app:v1'. Remote images are matched by their fully-qualified
// form, e.g. 'docker.io/library/nginx:latest', and by their familiar form, e.g. 'nginx:latest'.
// A reference without a tag is treated as ':latest'.
func (m *Matcher) Decide(image string) Decision {
	d := Decision{Image: image}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		d.Reason = fmt.Sprintf("invalid image reference: %s", err)
		return d
	}
	named = reference.TagNameOnly(named)
	if m.IsLocal(reference.Domain(named)) {
		d.Local = true
		local := strings.TrimPrefix(named.String(), reference.Domain(named)+"/")
		if rule, denied := m.deny.match(local); denied {
			d.Reason = fmt.Sprintf("local image %s denied by %s", local, rule)
			return d
		}
		d.Allowed = true
		d.Reason = fmt.Sprintf("local image %s allowed", local)
		return d
	}
	if rule, allowed := m.allow.match(named.String(), reference.FamiliarString(named)); allowed {
		d.Allowed = true
		d.Reason = fmt.Sprintf("remote image %s allowed by %s", named.String(), rule)
		return d
	}
	d.Reason = fmt.Sprintf("remote image %s not in the allow lists", named.String())
	return d
}
