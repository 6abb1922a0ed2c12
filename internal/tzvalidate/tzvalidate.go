// Package tzvalidate validates IANA timezone names against the loadable
// zone database, grounded on original_source/crates/core/src/timezone.rs
// (which validates against the system zone database rather than a fixed
// allow-list).
package tzvalidate

import (
	"fmt"
	"time"
)

func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("timezone: empty name")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("timezone: unknown IANA zone %q: %w", name, err)
	}
	return nil
}
