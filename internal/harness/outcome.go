package harness

import (
	"slices"

	"github.com/NielsdaWheelz/detbuild/internal/checksum"
)

// Outcome is the result of one case under one hook state.
type Outcome string

const (
	// OutcomeUnknown means no artifact was produced, usually a failed build.
	OutcomeUnknown Outcome = "unknown"

	// OutcomeInconclusive means artifacts were produced but equality could
	// not be established for all of them: a basename seen by only one build,
	// a build with no artifacts, or an artifact the hook could not patch.
	OutcomeInconclusive Outcome = "inconclusive"

	// OutcomeDeterministic means every basename had one digest across >= 2 builds.
	OutcomeDeterministic Outcome = "deterministic"

	// OutcomeNonDeterministic means some basename had more than one digest.
	OutcomeNonDeterministic Outcome = "non-deterministic"
)

// Comparison accumulates artifact digests across the builds of one case
// under one hook state. Every basename is compared, not just the first.
type Comparison struct {
	names   []string
	digests map[string][]checksum.Record

	builds      int
	emptyBuilds int
	unverified  int
}

// NewComparison returns an empty Comparison.
func NewComparison() *Comparison {
	return &Comparison{digests: make(map[string][]checksum.Record)}
}

// AddBuild records one build's artifacts and how many the hook left
// unverified. It returns, per record, whether it matched the first digest
// seen for its basename; nil for the first occurrence.
func (c *Comparison) AddBuild(records []checksum.Record, unverified int) []*bool {
	c.builds++
	if len(records) == 0 {
		c.emptyBuilds++
	}
	c.unverified += unverified

	matches := make([]*bool, len(records))
	for i, r := range records {
		prev, seen := c.digests[r.Name]
		if !seen {
			c.names = append(c.names, r.Name)
		} else {
			ok := prev[0].Digest == r.Digest
			matches[i] = &ok
		}
		c.digests[r.Name] = append(prev, r)
	}
	return matches
}

// Mismatches returns basenames with more than one distinct digest, in first-seen order.
func (c *Comparison) Mismatches() []string {
	var out []string
	for _, name := range c.names {
		recs := c.digests[name]
		first := recs[0].Digest
		if slices.ContainsFunc(recs[1:], func(r checksum.Record) bool { return r.Digest != first }) {
			out = append(out, name)
		}
	}
	return out
}

// Outcome resolves the accumulated builds.
func (c *Comparison) Outcome() Outcome {
	if len(c.names) == 0 {
		return OutcomeUnknown
	}
	if len(c.Mismatches()) > 0 {
		return OutcomeNonDeterministic
	}
	if c.emptyBuilds > 0 || c.unverified > 0 {
		return OutcomeInconclusive
	}
	for _, name := range c.names {
		if len(c.digests[name]) < 2 {
			return OutcomeInconclusive
		}
	}
	return OutcomeDeterministic
}
