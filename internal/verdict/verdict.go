// Package verdict turns artifact and motion scores into a classification.
//
// Two policies exist and exactly one is active per process. BandPolicy flags
// static clips and artifact scores outside a narrow band; GradedPolicy flags
// each signal independently and reports a confidence level. Both policies'
// thresholds are heuristics with no measured accuracy behind them.
package verdict

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"veritas/internal/config"
)

// Verdict is the closed set of classifications.
type Verdict string

const (
	LikelySynthetic           Verdict = "likely_synthetic"
	LikelyAuthentic           Verdict = "likely_authentic"
	HighConfidenceSynthetic   Verdict = "high_confidence_synthetic"
	MediumConfidenceSynthetic Verdict = "medium_confidence_synthetic"
	MediumConfidenceAuthentic Verdict = "medium_confidence_authentic"
	HighConfidenceAuthentic   Verdict = "high_confidence_authentic"
)

var titleCaser = cases.Title(language.English)

// Label returns the human-readable form, e.g. "Likely Synthetic".
func (v Verdict) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(v), "_", " "))
}

// Synthetic reports whether the verdict leans synthetic.
func (v Verdict) Synthetic() bool {
	switch v {
	case LikelySynthetic, HighConfidenceSynthetic, MediumConfidenceSynthetic:
		return true
	default:
		return false
	}
}

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case LikelySynthetic, LikelyAuthentic,
		HighConfidenceSynthetic, MediumConfidenceSynthetic,
		MediumConfidenceAuthentic, HighConfidenceAuthentic:
		return true
	default:
		return false
	}
}

// Parse converts a stored verdict string back to a Verdict.
func Parse(value string) (Verdict, error) {
	v := Verdict(strings.ToLower(strings.TrimSpace(value)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown verdict %q", value)
	}
	return v, nil
}

// Policy decides a verdict from an artifact score in [0, 1] and a
// non-negative motion score.
type Policy interface {
	Name() string
	Decide(artifact, motion float64) Verdict
}

// BandPolicy treats very low motion, or an artifact score at or outside
// either band edge, as synthetic.
type BandPolicy struct {
	ArtifactLow    float64
	ArtifactHigh   float64
	LowMotionFloor float64
}

func (BandPolicy) Name() string { return config.PolicyBand }

func (p BandPolicy) Decide(artifact, motion float64) Verdict {
	if motion <= p.LowMotionFloor {
		return LikelySynthetic
	}
	if artifact <= p.ArtifactLow || artifact >= p.ArtifactHigh {
		return LikelySynthetic
	}
	return LikelyAuthentic
}

// GradedPolicy flags an artifact score below ArtifactThreshold and a motion
// score below MotionThreshold; two flags is high-confidence synthetic, none
// is high-confidence authentic.
type GradedPolicy struct {
	ArtifactThreshold float64
	MotionThreshold   float64
}

func (GradedPolicy) Name() string { return config.PolicyGraded }

func (p GradedPolicy) Decide(artifact, motion float64) Verdict {
	artifactFlag := artifact < p.ArtifactThreshold
	motionFlag := motion < p.MotionThreshold
	switch {
	case artifactFlag && motionFlag:
		return HighConfidenceSynthetic
	case artifactFlag:
		return MediumConfidenceSynthetic
	case motionFlag:
		return MediumConfidenceAuthentic
	default:
		return HighConfidenceAuthentic
	}
}

// FromConfig returns the policy selected by cfg.Policy.
func FromConfig(cfg config.Verdict) (Policy, error) {
	switch cfg.Policy {
	case config.PolicyBand, "":
		return BandPolicy{
			ArtifactLow:    cfg.ArtifactLow,
			ArtifactHigh:   cfg.ArtifactHigh,
			LowMotionFloor: cfg.LowMotionFloor,
		}, nil
	case config.PolicyGraded:
		return GradedPolicy{
			ArtifactThreshold: cfg.ArtifactThreshold,
			MotionThreshold:   cfg.MotionThreshold,
		}, nil
	default:
		return nil, fmt.Errorf("unknown verdict policy %q", cfg.Policy)
	}
}
