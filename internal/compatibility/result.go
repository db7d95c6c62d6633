package compatibility

import "fmt"

// Result is the outcome of a compatibility check.
type Result struct {
	IsCompatible bool     `json:"is_compatible"`
	Messages     []string `json:"messages,omitempty"`
}

// NewCompatibleResult creates a passing result.
func NewCompatibleResult() *Result {
	return &Result{IsCompatible: true}
}

// NewIncompatibleResult creates a failing result with the given messages.
func NewIncompatibleResult(messages ...string) *Result {
	return &Result{IsCompatible: false, Messages: messages}
}

// AddMessage records an incompatibility and marks the result failing.
func (r *Result) AddMessage(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
	r.IsCompatible = false
}

// Merge folds another result into this one.
func (r *Result) Merge(other *Result) {
	if !other.IsCompatible {
		r.IsCompatible = false
		r.Messages = append(r.Messages, other.Messages...)
	}
}
