package skeleton

import (
	"errors"
	"fmt"
)

// Validate reports every structural problem of the hierarchy: duplicate
// names, dangling parent indices and cycles.
func (s *Skeleton) Validate() error {
	var errs []error
	seen := map[string]int{}
	for i, name := range s.names {
		if j, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%w: %q (bones %d and %d)", ErrDuplicateName, name, j, i))
			continue
		}
		seen[name] = i
	}

	n := len(s.parents)
	for i, p := range s.parents {
		if p >= n || p == i {
			errs = append(errs, fmt.Errorf("%w: bone %d (%s) parent %d", ErrDanglingParent, i, s.names[i], p))
		}
	}
	if len(errs) == 0 {
		// sortBones only reports cycles once parents are in range.
		if _, err := s.sortBones(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
