package compatibility

import (
	"fmt"
	"strings"
)

// Policy is a named compatibility policy attached to a schema's metadata.
type Policy string

// Supported policies. FULL and BOTH each require the check in both
// directions; both names are accepted because the set is dialect-defined.
const (
	PolicyNone     Policy = "NONE"
	PolicyBackward Policy = "BACKWARD"
	PolicyForward  Policy = "FORWARD"
	PolicyFull     Policy = "FULL"
	PolicyBoth     Policy = "BOTH"
)

// ParsePolicy normalizes and validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PolicyNone, PolicyBackward, PolicyForward, PolicyFull, PolicyBoth:
		return p, nil
	}
	return "", fmt.Errorf("unknown compatibility policy %q", s)
}

// RequiresBackward reports whether the candidate must read data written by
// prior versions.
func (p Policy) RequiresBackward() bool {
	return p == PolicyBackward || p == PolicyFull || p == PolicyBoth
}

// RequiresForward reports whether prior versions must read data written by
// the candidate.
func (p Policy) RequiresForward() bool {
	return p == PolicyForward || p == PolicyFull || p == PolicyBoth
}
