package ai

import "strings"

// providerChain resolves which providers a call may use: the requested (or
// default) provider first, then the fallback when it differs.
type providerChain struct {
	providers map[string]Provider
	primary   string
	fallback  string
}

func newProviderChain() *providerChain {
	return &providerChain{providers: make(map[string]Provider)}
}

func (c *providerChain) add(p Provider) {
	if p == nil {
		return
	}
	name := strings.ToLower(p.Name())
	c.providers[name] = p
	if c.primary == "" {
		c.primary = name
	}
}

// candidates returns the providers to try in order. An explicitly requested
// provider that is not registered yields no candidates.
func (c *providerChain) candidates(requested string) []Provider {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name == "" {
		name = c.primary
	}
	var out []Provider
	if p, ok := c.providers[name]; ok {
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	if fb, ok := c.providers[c.fallback]; ok && c.fallback != name {
		out = append(out, fb)
	}
	return out
}

func (c *providerChain) enabled() bool {
	return len(c.providers) > 0
}

func (c *providerChain) names() []string {
	out := make([]string, 0, len(c.providers))
	for name := range c.providers {
		out = append(out, name)
	}
	return out
}
