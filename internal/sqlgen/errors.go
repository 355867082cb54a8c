package sqlgen

import (
	"errors"
	"fmt"
)

// UnresolvableMemberError reports a member path with no indexed schema field.
type UnresolvableMemberError struct {
	Schema string
	Path   string
	Reason string
}

func (e *UnresolvableMemberError) Error() string {
	return fmt.Sprintf("UNRESOLVABLE_MEMBER: %s.%s: %s", e.Schema, e.Path, e.Reason)
}

// AmbiguousOrderingError reports an ordering key with no stable total order.
type AmbiguousOrderingError struct {
	Schema string
	Path   string
	Reason string
}

func (e *AmbiguousOrderingError) Error() string {
	return fmt.Sprintf("AMBIGUOUS_ORDERING: %s.%s: %s", e.Schema, e.Path, e.Reason)
}

// IsUnresolvableMemberError returns true if err is an UnresolvableMemberError.
func IsUnresolvableMemberError(err error) bool {
	var ue *UnresolvableMemberError
	return errors.As(err, &ue)
}

// IsAmbiguousOrderingError returns true if err is an AmbiguousOrderingError.
func IsAmbiguousOrderingError(err error) bool {
	var ae *AmbiguousOrderingError
	return errors.As(err, &ae)
}
