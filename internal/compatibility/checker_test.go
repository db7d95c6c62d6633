package compatibility

import (
	"fmt"
	"testing"
)

// recordingChecker reports incompatible whenever reader != writer and logs
// the direction of every call.
type recordingChecker struct {
	calls []string
}

func (c *recordingChecker) Check(reader, writer string) *Result {
	c.calls = append(c.calls, reader+"<-"+writer)
	if reader != writer {
		return NewIncompatibleResult(fmt.Sprintf("%s cannot read %s", reader, writer))
	}
	return NewCompatibleResult()
}

func TestParsePolicy(t *testing.T) {
	for _, input := range []string{"backward", " FULL ", "None", "BOTH", "forward"} {
		if _, err := ParsePolicy(input); err != nil {
			t.Errorf("ParsePolicy(%q) failed: %v", input, err)
		}
	}
	if _, err := ParsePolicy("SIDEWAYS"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPolicyDirections(t *testing.T) {
	cases := []struct {
		policy   Policy
		backward bool
		forward  bool
	}{
		{PolicyNone, false, false},
		{PolicyBackward, true, false},
		{PolicyForward, false, true},
		{PolicyFull, true, true},
		{PolicyBoth, true, true},
	}
	for _, tc := range cases {
		if tc.policy.RequiresBackward() != tc.backward {
			t.Errorf("%s: RequiresBackward = %v", tc.policy, tc.policy.RequiresBackward())
		}
		if tc.policy.RequiresForward() != tc.forward {
			t.Errorf("%s: RequiresForward = %v", tc.policy, tc.policy.RequiresForward())
		}
	}
}

func TestCheckNonePolicyAndEmptyHistory(t *testing.T) {
	c := NewChecker()
	stub := &recordingChecker{}
	c.Register("stub", stub)

	if r := c.Check(PolicyNone, "stub", "a", []string{"b"}); !r.IsCompatible {
		t.Error("NONE must always pass")
	}
	if r := c.Check(PolicyBackward, "stub", "a", nil); !r.IsCompatible {
		t.Error("an empty history must always pass")
	}
	if len(stub.calls) != 0 {
		t.Errorf("no dialect checks expected, got %v", stub.calls)
	}
}

func TestCheckUnknownDialect(t *testing.T) {
	c := NewChecker()
	if r := c.Check(PolicyBackward, "thrift", "a", []string{"b"}); r.IsCompatible {
		t.Error("expected failure for an unregistered dialect")
	}
}

func TestCheckDirections(t *testing.T) {
	c := NewChecker()
	stub := &recordingChecker{}
	c.Register("stub", stub)

	// BACKWARD: the candidate reads the prior
	stub.calls = nil
	c.Check(PolicyBackward, "stub", "new", []string{"old"})
	if len(stub.calls) != 1 || stub.calls[0] != "new<-old" {
		t.Errorf("BACKWARD calls = %v", stub.calls)
	}

	// FORWARD: the prior reads the candidate
	stub.calls = nil
	c.Check(PolicyForward, "stub", "new", []string{"old"})
	if len(stub.calls) != 1 || stub.calls[0] != "old<-new" {
		t.Errorf("FORWARD calls = %v", stub.calls)
	}

	// FULL: both directions, per prior
	stub.calls = nil
	c.Check(PolicyFull, "stub", "new", []string{"v1", "v2"})
	if len(stub.calls) != 4 {
		t.Errorf("FULL over two priors should make 4 calls, got %v", stub.calls)
	}
}

func TestCheckAggregatesMessages(t *testing.T) {
	c := NewChecker()
	c.Register("stub", &recordingChecker{})

	r := c.Check(PolicyBoth, "stub", "new", []string{"old"})
	if r.IsCompatible {
		t.Fatal("expected incompatibility")
	}
	if len(r.Messages) != 2 {
		t.Errorf("expected one message per failed direction, got %v", r.Messages)
	}
}

func TestResultMerge(t *testing.T) {
	r := NewCompatibleResult()
	r.Merge(NewCompatibleResult())
	if !r.IsCompatible {
		t.Error("merging compatible results must stay compatible")
	}
	r.Merge(NewIncompatibleResult("broken"))
	if r.IsCompatible || len(r.Messages) != 1 {
		t.Errorf("merge did not fold in the failure: %+v", r)
	}
}
