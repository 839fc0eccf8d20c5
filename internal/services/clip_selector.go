package services

import (
	"math"
	"sort"
	"strings"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// ClipWindow is a scored candidate window before persistence.
type ClipWindow struct {
	Start    float64
	End      float64
	Score    float64
	HookText string
	Features map[string]float64
}

type ClipSelectorConfig struct {
	MinSeconds float64
	MaxSeconds float64
	MaxClips   int
	HookWords  []string
}

// ClipSelector proposes up to MaxClips non-overlapping windows scored on
// speech density, silence coverage, hook words, scene alignment and duration
// shape. Pure: no I/O, deterministic for fixed inputs.
type ClipSelector interface {
	Select(duration float64, segments []types.TranscriptSegment, silences []types.SilenceInterval, cuts []float64) []ClipWindow
}

type clipSelector struct {
	log *logger.Logger
	cfg ClipSelectorConfig
}

var defaultHookWords = []string{
	"amazing", "incredible", "secret", "never", "best", "worst",
	"how to", "why", "revealed", "truth", "mistake", "warning",
}

func NewClipSelector(log *logger.Logger, cfg ClipSelectorConfig) ClipSelector {
	if cfg.MinSeconds <= 0 {
		cfg.MinSeconds = 15
	}
	if cfg.MaxSeconds <= cfg.MinSeconds {
		cfg.MaxSeconds = 60
	}
	if cfg.MaxClips <= 0 {
		cfg.MaxClips = 5
	}
	if len(cfg.HookWords) == 0 {
		cfg.HookWords = defaultHookWords
	}
	return &clipSelector{log: log.With("service", "ClipSelector"), cfg: cfg}
}

func (s *clipSelector) Select(duration float64, segments []types.TranscriptSegment, silences []types.SilenceInterval, cuts []float64) []ClipWindow {
	if duration <= 0 || len(segments) == 0 {
		return []ClipWindow{}
	}

	candidates := s.buildWindows(duration, segments)
	for i := range candidates {
		s.score(&candidates[i], duration, segments, silences, cuts)
	}

	// Greedy by score, ties to the earlier start, under pairwise non-overlap.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start < candidates[j].Start
	})

	picked := []ClipWindow{}
	for _, c := range candidates {
		if len(picked) >= s.cfg.MaxClips {
			break
		}
		overlaps := false
		for _, p := range picked {
			if c.Start < p.End && p.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			picked = append(picked, c)
		}
	}

	sort.Slice(picked, func(i, j int) bool { return picked[i].Start < picked[j].Start })
	return picked
}

// buildWindows grows a window from every transcript segment start until it
// covers at least the minimum clip length, capping at the maximum.
func (s *clipSelector) buildWindows(duration float64, segments []types.TranscriptSegment) []ClipWindow {
	windows := []ClipWindow{}
	for i := range segments {
		start := segments[i].Start
		end := start
		var hook string
		for j := i; j < len(segments); j++ {
			if segments[j].End-start > s.cfg.MaxSeconds {
				break
			}
			end = segments[j].End
			if hook == "" {
				hook = strings.TrimSpace(segments[j].Text)
			}
			if end-start >= s.cfg.MinSeconds {
				break
			}
		}
		if end-start < s.cfg.MinSeconds {
			continue
		}
		if end > duration {
			end = duration
		}
		if end-start < s.cfg.MinSeconds {
			continue
		}
		windows = append(windows, ClipWindow{Start: start, End: end, HookText: hook})
	}
	return windows
}

func (s *clipSelector) score(w *ClipWindow, duration float64, segments []types.TranscriptSegment, silences []types.SilenceInterval, cuts []float64) {
	length := w.End - w.Start
	score := 50.0
	features := map[string]float64{}

	// Speech density: words per second, saturating at 3 w/s for +20.
	words := 0
	for _, seg := range segments {
		if seg.End <= w.Start || seg.Start >= w.End {
			continue
		}
		if len(seg.Words) > 0 {
			for _, wd := range seg.Words {
				if wd.Start >= w.Start && wd.End <= w.End {
					words++
				}
			}
		} else {
			words += len(strings.Fields(seg.Text))
		}
	}
	density := float64(words) / length
	densityBonus := math.Min(density/3.0, 1.0) * 20.0
	score += densityBonus
	features["speech_density"] = density

	// Hook words: +5 per distinct hit, capped at +15.
	text := strings.ToLower(windowText(w, segments))
	hookBonus := 0.0
	for _, kw := range s.cfg.HookWords {
		if strings.Contains(text, kw) {
			hookBonus += 5
			if hookBonus >= 15 {
				break
			}
		}
	}
	score += hookBonus
	features["hook_bonus"] = hookBonus

	// Silence coverage subtracts up to 30.
	silent := 0.0
	for _, iv := range silences {
		lo := math.Max(iv.Start, w.Start)
		hi := math.Min(iv.End, w.End)
		if hi > lo {
			silent += hi - lo
		}
	}
	silenceRatio := silent / length
	score -= silenceRatio * 30.0
	features["silence_ratio"] = silenceRatio

	// Duration shape.
	switch {
	case length >= 20 && length <= 40:
		score += 10
	case length < 15 || length > 60:
		score -= 10
	}

	// Scene alignment: either boundary within 250 ms of a cut.
	for _, c := range cuts {
		if math.Abs(c-w.Start) <= 0.25 || math.Abs(c-w.End) <= 0.25 {
			score += 5
			features["scene_aligned"] = 1
			break
		}
	}

	// Early-position bonus for hooks near the top of the video.
	if w.Start < duration*0.2 {
		score += 5
	}

	w.Score = math.Max(0, math.Min(100, score))
	w.Features = features
}

func windowText(w *ClipWindow, segments []types.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.End <= w.Start || seg.Start >= w.End {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
