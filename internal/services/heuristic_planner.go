package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// Pauses between consecutive words longer than this become jump cuts.
const wordGapS = 0.5

// HeuristicWindow is the caller-selected source window for a heuristic plan:
// either a stored clip candidate or a free-form [start, end).
type HeuristicWindow struct {
	Start         float64
	End           float64
	RemoveSilence bool
	Reason        string
}

// HeuristicPlanner builds a plan document without a model: keep the window,
// optionally cutting detected silences and long inter-word pauses out of it.
// Pure.
type HeuristicPlanner interface {
	Plan(duration float64, window HeuristicWindow, silences []types.SilenceInterval, words []types.TranscriptWord) (types.PlanDocument, error)
}

type heuristicPlanner struct {
	log *logger.Logger
}

func NewHeuristicPlanner(log *logger.Logger) HeuristicPlanner {
	return &heuristicPlanner{log: log.With("service", "HeuristicPlanner")}
}

func (p *heuristicPlanner) Plan(duration float64, window HeuristicWindow, silences []types.SilenceInterval, words []types.TranscriptWord) (types.PlanDocument, error) {
	var doc types.PlanDocument
	if duration <= 0 {
		return doc, apperr.New(apperr.CodeEmptySource, fmt.Errorf("source duration is zero"))
	}

	start := math.Max(0, window.Start)
	end := math.Min(duration, window.End)
	if end <= start {
		return doc, apperr.New(apperr.CodeInvalidRequest, fmt.Errorf("window [%0.3f, %0.3f] is empty", window.Start, window.End))
	}

	reason := window.Reason
	if reason == "" {
		reason = "selected window"
	}

	cuts := silences
	if window.RemoveSilence {
		cuts = append(append([]types.SilenceInterval{}, silences...), wordGapCuts(words)...)
		sort.Slice(cuts, func(i, j int) bool { return cuts[i].Start < cuts[j].Start })
	}

	keeps := []types.EDLSegment{}
	if window.RemoveSilence && len(cuts) > 0 {
		cursor := start
		for _, iv := range cuts {
			lo := math.Max(iv.Start, start)
			hi := math.Min(iv.End, end)
			if hi <= lo {
				continue
			}
			if lo > cursor {
				keeps = append(keeps, types.EDLSegment{Start: cursor, End: lo, Kind: types.SegmentKeep, Reason: reason})
			}
			if hi > cursor {
				cursor = hi
			}
		}
		if cursor < end {
			keeps = append(keeps, types.EDLSegment{Start: cursor, End: end, Kind: types.SegmentKeep, Reason: reason})
		}
	} else {
		keeps = append(keeps, types.EDLSegment{Start: start, End: end, Kind: types.SegmentKeep, Reason: reason})
	}

	if len(keeps) == 0 {
		return doc, apperr.New(apperr.CodeUnrenderablePlan, fmt.Errorf("window is entirely silent"))
	}

	first := keeps[0]
	last := keeps[len(keeps)-1]
	doc = types.PlanDocument{
		StoryArc: types.StoryArc{
			HookT:       first.Start,
			ClimaxT:     (first.Start + last.End) / 2,
			ResolutionT: last.End,
		},
		EDL: keeps,
	}
	return doc, nil
}

// wordGapCuts turns pauses between consecutive words into cut intervals.
func wordGapCuts(words []types.TranscriptWord) []types.SilenceInterval {
	if len(words) < 2 {
		return nil
	}
	sorted := append([]types.TranscriptWord{}, words...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	var out []types.SilenceInterval
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if next.Start-prev.End > wordGapS {
			out = append(out, types.SilenceInterval{Start: prev.End, End: next.Start})
		}
	}
	return out
}
