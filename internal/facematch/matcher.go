package facematch

import (
	"fmt"
	"math"
)

// DefaultTolerance is the largest distance still treated as the same person.
const DefaultTolerance = 0.5

// Policy decides which candidate wins when several are within tolerance.
type Policy string

const (
	// PolicyFirst accepts the first candidate in store order that is within
	// tolerance. Ties are settled by iteration order, not distance.
	PolicyFirst Policy = "first"
	// PolicyClosest accepts the candidate with the smallest distance.
	PolicyClosest Policy = "closest"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFirst, "":
		return PolicyFirst, nil
	case PolicyClosest:
		return PolicyClosest, nil
	}
	return "", fmt.Errorf("unknown match policy %q", s)
}

// Candidate is a stored template belonging to an employee.
type Candidate struct {
	EmployeeID int64
	Encoding   Encoding
}

// Match is the accepted candidate and its distance from the probe.
type Match struct {
	EmployeeID int64
	Distance   float64
}

// Matcher compares a probe template against candidates.
type Matcher struct {
	tolerance float64
	policy    Policy
}

// NewMatcher builds a matcher; a non-positive tolerance falls back to
// DefaultTolerance.
func NewMatcher(tolerance float64, policy Policy) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if policy == "" {
		policy = PolicyFirst
	}
	return &Matcher{tolerance: tolerance, policy: policy}
}

// Tolerance returns the configured threshold.
func (m *Matcher) Tolerance() float64 { return m.tolerance }

// Policy returns the configured tie policy.
func (m *Matcher) Policy() Policy { return m.policy }

// Find returns the winning candidate, or false if none is within tolerance.
func (m *Matcher) Find(probe Encoding, candidates []Candidate) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	found := false
	for _, c := range candidates {
		d := probe.Distance(c.Encoding)
		if d > m.tolerance {
			continue
		}
		if m.policy == PolicyFirst {
			return Match{EmployeeID: c.EmployeeID, Distance: d}, true
		}
		if d < best.Distance {
			best = Match{EmployeeID: c.EmployeeID, Distance: d}
			found = true
		}
	}
	return best, found
}
