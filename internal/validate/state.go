package validate

import "github.com/rotisserie/eris"

// State is a candidate's position in the validation lifecycle.
type State int

const (
	StateDiscovered State = iota
	StatePhase1Checked
	StateEnriched
	StateAccepted
	StateRejected
)

var stateNames = map[State]string{
	StateDiscovered:    "discovered",
	StatePhase1Checked: "phase1-checked",
	StateEnriched:      "enriched",
	StateAccepted:      "accepted",
	StateRejected:      "rejected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected
}

// Progress walks one candidate through discovery, the phase-1 check,
// enrichment, and the phase-2 check in that order. A rejecting verdict
// short-circuits to Rejected, which is final for the run: a rejected
// candidate is never retried. Warnings accumulate across phases; the
// reasons of the deciding phase stand alone.
type Progress struct {
	state   State
	verdict Verdict
}

// NewProgress starts a candidate at Discovered.
func NewProgress() *Progress {
	return &Progress{state: StateDiscovered}
}

func (pr *Progress) State() State {
	return pr.state
}

// Verdict returns the decision so far.
func (pr *Progress) Verdict() Verdict {
	return pr.verdict
}

// RecordPhase1 moves Discovered to Phase1Checked, or straight to Rejected
// on a rejecting verdict.
func (pr *Progress) RecordPhase1(v Verdict) error {
	if pr.state != StateDiscovered {
		return pr.badTransition("phase1")
	}
	pr.verdict = v
	if !v.Accepted {
		pr.state = StateRejected
		return nil
	}
	pr.state = StatePhase1Checked
	return nil
}

// RecordEnriched moves Phase1Checked to Enriched. Enrichment that was
// skipped (nothing missing, no page text, open provider circuits) still
// counts: the stage ran, the candidate moves on.
func (pr *Progress) RecordEnriched() error {
	if pr.state != StatePhase1Checked {
		return pr.badTransition("enrich")
	}
	pr.state = StateEnriched
	return nil
}

// RecordPhase2 settles the terminal state from the authoritative phase-2
// verdict. Phase-1 warnings carry over onto it.
func (pr *Progress) RecordPhase2(v Verdict) error {
	if pr.state != StateEnriched {
		return pr.badTransition("phase2")
	}
	carried := pr.verdict.Warnings
	pr.verdict = v
	if len(carried) > 0 {
		pr.verdict.Warnings = append(append([]string(nil), carried...), v.Warnings...)
	}
	if v.Accepted {
		pr.state = StateAccepted
	} else {
		pr.state = StateRejected
	}
	return nil
}

func (pr *Progress) badTransition(step string) error {
	return eris.Errorf("validate: %s out of order from state %s", step, pr.state)
}
