package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// ValidationResult is a sanitised plan plus non-blocking warnings.
type ValidationResult struct {
	Document  types.PlanDocument
	Warnings  []string
	TotalKeep float64
}

type ValidatorConfig struct {
	CoverageTolerancePct float64
	StrictCoverage       bool
}

// EDLValidator is the single gate between raw planner output and the
// renderer. Validation is a fixed point: validating an already-validated
// document changes nothing.
type EDLValidator interface {
	Validate(doc types.PlanDocument, duration float64, desiredLengthPct float64) (ValidationResult, error)
}

type edlValidator struct {
	log *logger.Logger
	cfg ValidatorConfig
}

func NewEDLValidator(log *logger.Logger, cfg ValidatorConfig) EDLValidator {
	if cfg.CoverageTolerancePct <= 0 {
		cfg.CoverageTolerancePct = 10
	}
	return &edlValidator{log: log.With("service", "EDLValidator"), cfg: cfg}
}

func roundMS(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func (v *edlValidator) Validate(doc types.PlanDocument, duration float64, desiredLengthPct float64) (ValidationResult, error) {
	res := ValidationResult{Warnings: []string{}}

	if duration <= 0 {
		return res, apperr.New(apperr.CodeEmptySource, fmt.Errorf("source duration is zero"))
	}

	// Bounds: clip to [0, duration], drop anything reduced below 100 ms.
	// Unknown segment kinds are dropped with the unknown fields.
	segs := []types.EDLSegment{}
	for _, s := range doc.EDL {
		kind := strings.ToLower(strings.TrimSpace(s.Kind))
		switch kind {
		case types.SegmentKeep, types.SegmentSkip, types.SegmentTransition:
		default:
			res.Warnings = append(res.Warnings, fmt.Sprintf("dropped segment with unknown kind %q", s.Kind))
			continue
		}
		start := math.Max(0, s.Start)
		end := math.Min(duration, s.End)
		if start != s.Start || end != s.End {
			res.Warnings = append(res.Warnings, fmt.Sprintf("clipped segment [%0.3f, %0.3f] to source bounds", s.Start, s.End))
		}
		start = roundMS(start)
		end = roundMS(end)
		if end-start < 0.1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("dropped segment [%0.3f, %0.3f] shorter than 100ms", start, end))
			continue
		}
		s.Kind = kind
		s.Start = start
		s.End = end
		segs = append(segs, s)
	}

	// Ordering and overlap merge for keep segments. Reasons concatenate.
	keeps := []types.EDLSegment{}
	others := []types.EDLSegment{}
	for _, s := range segs {
		if s.Kind == types.SegmentKeep {
			keeps = append(keeps, s)
		} else {
			others = append(others, s)
		}
	}
	sort.SliceStable(keeps, func(i, j int) bool { return keeps[i].Start < keeps[j].Start })

	merged := []types.EDLSegment{}
	for _, s := range keeps {
		if len(merged) > 0 && s.Start <= merged[len(merged)-1].End {
			last := &merged[len(merged)-1]
			if s.End > last.End {
				last.End = s.End
			}
			if s.Reason != "" && !strings.Contains(last.Reason, s.Reason) {
				if last.Reason != "" {
					last.Reason += "; "
				}
				last.Reason += s.Reason
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("merged overlapping keep segments at %0.3f", s.Start))
			continue
		}
		merged = append(merged, s)
	}

	totalKeep := 0.0
	for _, s := range merged {
		totalKeep += s.End - s.Start
	}
	totalKeep = roundMS(totalKeep)

	// Non-empty comes before coverage so an empty plan is a rejection, not a
	// warning.
	if totalKeep <= 0 {
		return res, apperr.New(apperr.CodeUnrenderablePlan, fmt.Errorf("plan has no keep segments"))
	}

	if desiredLengthPct > 0 {
		target := desiredLengthPct * duration
		tolerance := target * v.cfg.CoverageTolerancePct / 100
		if totalKeep < target-tolerance || totalKeep > target+tolerance {
			warning := fmt.Sprintf("coverage_warning: total keep %.3fs outside target %.3fs +/- %.3fs", totalKeep, target, tolerance)
			if v.cfg.StrictCoverage {
				return res, apperr.New(apperr.CodeInvalidPlan, fmt.Errorf("%s", warning))
			}
			res.Warnings = append(res.Warnings, warning)
		}
	}

	// Story arc: strictly ordered and each anchor inside some keep segment.
	arc := doc.StoryArc
	arc.HookT = roundMS(clampF(arc.HookT, 0, duration))
	arc.ClimaxT = roundMS(clampF(arc.ClimaxT, 0, duration))
	arc.ResolutionT = roundMS(clampF(arc.ResolutionT, 0, duration))
	if !(arc.HookT < arc.ClimaxT && arc.ClimaxT < arc.ResolutionT) {
		res.Warnings = append(res.Warnings, "story_arc_warning: anchors not strictly ordered")
	} else {
		for _, t := range []float64{arc.HookT, arc.ClimaxT, arc.ResolutionT} {
			if !insideAnyKeep(t, merged) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("story_arc_warning: anchor %0.3fs outside keep segments", t))
				break
			}
		}
	}

	out := types.PlanDocument{
		StoryArc:        arc,
		EDL:             append(merged, others...),
		KeyMoments:      sanitizeKeyMoments(doc.KeyMoments, duration),
		Transitions:     doc.Transitions,
		Recommendations: doc.Recommendations,
	}
	sort.SliceStable(out.EDL, func(i, j int) bool { return out.EDL[i].Start < out.EDL[j].Start })

	res.Document = out
	res.TotalKeep = totalKeep
	return res, nil
}

func insideAnyKeep(t float64, keeps []types.EDLSegment) bool {
	for _, s := range keeps {
		if t >= s.Start && t <= s.End {
			return true
		}
	}
	return false
}

func sanitizeKeyMoments(moments []types.KeyMoment, duration float64) []types.KeyMoment {
	out := []types.KeyMoment{}
	for _, m := range moments {
		m.Start = roundMS(clampF(m.Start, 0, duration))
		m.End = roundMS(clampF(m.End, 0, duration))
		if m.End <= m.Start {
			continue
		}
		out = append(out, m)
	}
	return out
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
