// Package compatibility defines the policy model and the per-dialect
// compatibility checkers the registry routes schema evolution through.
package compatibility

// DialectChecker checks whether a reader schema can decode data written with
// a writer schema, under one dialect's resolution rules.
type DialectChecker interface {
	Check(reader, writer string) *Result
}

// Checker dispatches compatibility checks to dialect-specific checkers.
type Checker struct {
	checkers map[string]DialectChecker
}

// NewChecker creates an empty checker registry.
func NewChecker() *Checker {
	return &Checker{checkers: make(map[string]DialectChecker)}
}

// Register installs the checker for a dialect type tag.
func (c *Checker) Register(dialect string, checker DialectChecker) {
	c.checkers[dialect] = checker
}

// Check evaluates the candidate schema against the given prior versions,
// oldest first, under the policy. The caller chooses the scope: pass only
// the latest version for write-time gating, or every version for a
// full-history query. PolicyNone and an empty history always pass.
func (c *Checker) Check(policy Policy, dialect, candidate string, priors []string) *Result {
	if policy == PolicyNone || len(priors) == 0 {
		return NewCompatibleResult()
	}

	checker, ok := c.checkers[dialect]
	if !ok {
		return NewIncompatibleResult("no compatibility checker for dialect: " + dialect)
	}

	result := NewCompatibleResult()
	for i, prior := range priors {
		if policy.RequiresBackward() {
			if r := checker.Check(candidate, prior); !r.IsCompatible {
				for _, msg := range r.Messages {
					result.AddMessage("backward check failed against prior schema %d: %s", i+1, msg)
				}
			}
		}
		if policy.RequiresForward() {
			if r := checker.Check(prior, candidate); !r.IsCompatible {
				for _, msg := range r.Messages {
					result.AddMessage("forward check failed against prior schema %d: %s", i+1, msg)
				}
			}
		}
	}
	return result
}
