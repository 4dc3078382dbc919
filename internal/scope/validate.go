package scope

import (
	"fmt"
	"strings"
)

// Validate performs the same strict parity check the registry applies:
// every singleton key the config declares must be declared by a Go module
// with the same scope, and vice versa.
func (c *Cache) Validate(declared map[string]Scope) error {
	var errs []string

	for key, wantScope := range declared {
		gotScope, ok := c.scopes[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("config declares singleton '%s' but no Go module declared it", key))
			continue
		}
		if gotScope != wantScope {
			errs = append(errs, fmt.Sprintf("singleton '%s': config declares scope '%s' but Go module declared '%s'",
				key, wantScope.String(), gotScope.String()))
		}
	}

	for key := range c.scopes {
		if _, ok := declared[key]; !ok {
			errs = append(errs, fmt.Sprintf("Go module declared singleton '%s' which is not declared in config", key))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("singleton cache validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
