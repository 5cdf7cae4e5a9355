// Package validate is the two-phase acceptance gate for scraped products.
// Phase 1 screens raw candidates with cheap name and URL heuristics so no
// enrichment spend reaches obvious gear, merch, or gift listings. Phase 2
// applies the full rule set to the assembled record after enrichment; its
// verdict is authoritative. A Progress tracks one candidate through the
// phases and makes out-of-order transitions impossible.
package validate

import (
	"github.com/beanatlas/coffee-cli/internal/resilience"
)

// DefaultMaxPriceSpread bounds the price ratio between the smallest and
// largest package size before a record is considered implausible.
const DefaultMaxPriceSpread = 10.0

// Stage names recorded against skip-ledger entries.
const (
	StagePhase1 = "phase1"
	StagePhase2 = "phase2"
)

// Reason and warning codes. Reasons reject; warnings ride along on the
// verdict without affecting acceptance.
const (
	ReasonNegativeKeyword  = "negative-keyword-match"
	ReasonNoCoffeeSignal   = "no-coffee-signal"
	ReasonNonPositivePrice = "non-positive-price"
	ReasonPriceSpread      = "price-spread-implausible"
	ReasonDuplicateSize    = "duplicate-size-grams"

	WarnPriceOrdering = "price-ordering-violation"
	WarnAtypicalSize  = "atypical-package-size"
)

// Verdict is the outcome of one validation phase. Reasons are populated
// only on rejection; warnings can accompany accepted records too.
type Verdict struct {
	Accepted bool     `json:"accepted"`
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Rejection converts a rejecting verdict into the error the skip ledger
// records. Accepted verdicts return nil.
func (v Verdict) Rejection(stage string) error {
	if v.Accepted {
		return nil
	}
	return resilience.NewRejection(stage, v.Reasons...)
}

// Options configure a Validator.
type Options struct {
	// MaxPriceSpread overrides DefaultMaxPriceSpread when positive.
	MaxPriceSpread float64
}

// Validator applies both phases. It is stateless and safe for concurrent
// use; per-candidate state lives in Progress.
type Validator struct {
	maxPriceSpread float64
}

// New builds a Validator, filling defaults for unset options.
func New(opts Options) *Validator {
	spread := opts.MaxPriceSpread
	if spread <= 0 {
		spread = DefaultMaxPriceSpread
	}
	return &Validator{maxPriceSpread: spread}
}

func accept() Verdict {
	return Verdict{Accepted: true}
}

func reject(reasons ...string) Verdict {
	return Verdict{Reasons: reasons}
}
