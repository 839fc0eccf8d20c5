package services

import (
	"strings"
	"testing"

	"github.com/yungbote/storycut-backend/internal/types"
)

func speech(start, end float64, text string) types.TranscriptSegment {
	return types.TranscriptSegment{Start: start, End: end, Text: text}
}

// wordsFor builds a text with exactly n words.
func wordsFor(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestSelect_NoTranscriptNoCandidates(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{})
	if got := s.Select(300, nil, nil, nil); len(got) != 0 {
		t.Fatalf("expected no candidates without transcript, got %+v", got)
	}
	if got := s.Select(0, []types.TranscriptSegment{speech(0, 20, "hi")}, nil, nil); len(got) != 0 {
		t.Fatalf("expected no candidates for zero duration, got %+v", got)
	}
}

func TestSelect_WindowsRespectBounds(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{MinSeconds: 15, MaxSeconds: 60, MaxClips: 5})
	segments := []types.TranscriptSegment{
		speech(0, 10, wordsFor(30)),
		speech(10, 25, wordsFor(40)),
		speech(30, 50, wordsFor(50)),
	}
	out := s.Select(120, segments, nil, nil)
	if len(out) == 0 {
		t.Fatal("expected at least one candidate")
	}
	for _, w := range out {
		length := w.End - w.Start
		if length < 15 || length > 60 {
			t.Fatalf("window [%v, %v] outside [15, 60]s", w.Start, w.End)
		}
		if w.Score < 0 || w.Score > 100 {
			t.Fatalf("score %v outside [0, 100]", w.Score)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			t.Fatalf("candidates overlap: %+v", out)
		}
	}
}

func TestSelect_SilencePenalisesWindow(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{MinSeconds: 15, MaxSeconds: 60, MaxClips: 5})
	segments := []types.TranscriptSegment{
		speech(0, 20, wordsFor(60)),
		speech(100, 120, wordsFor(60)),
	}
	quiet := s.Select(300, segments, nil, nil)
	noisy := s.Select(300, segments, []types.SilenceInterval{{Start: 0, End: 18}}, nil)
	if len(quiet) < 1 || len(noisy) < 1 {
		t.Fatalf("expected candidates in both runs: %d / %d", len(quiet), len(noisy))
	}
	if noisy[0].Score >= quiet[0].Score {
		t.Fatalf("silence should lower the score: %v >= %v", noisy[0].Score, quiet[0].Score)
	}
	if noisy[0].Features["silence_ratio"] <= 0 {
		t.Fatalf("expected positive silence_ratio, got %v", noisy[0].Features)
	}
}

func TestSelect_HookWordsAddCappedBonus(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{MinSeconds: 15, MaxSeconds: 60, MaxClips: 1})
	plain := s.Select(100, []types.TranscriptSegment{speech(0, 20, wordsFor(60))}, nil, nil)
	hooked := s.Select(100, []types.TranscriptSegment{
		speech(0, 20, "the secret truth revealed amazing never worst "+wordsFor(53)),
	}, nil, nil)
	if len(plain) != 1 || len(hooked) != 1 {
		t.Fatalf("expected one candidate each: %d / %d", len(plain), len(hooked))
	}
	if hooked[0].Features["hook_bonus"] != 15 {
		t.Fatalf("hook bonus = %v, want cap 15", hooked[0].Features["hook_bonus"])
	}
	if plain[0].Features["hook_bonus"] != 0 {
		t.Fatalf("plain hook bonus = %v, want 0", plain[0].Features["hook_bonus"])
	}
}

func TestSelect_SceneAlignmentBonus(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{MinSeconds: 15, MaxSeconds: 60, MaxClips: 1})
	segments := []types.TranscriptSegment{speech(10, 30, wordsFor(60))}
	aligned := s.Select(200, segments, nil, []float64{10.1})
	unaligned := s.Select(200, segments, nil, []float64{50})
	if aligned[0].Score != unaligned[0].Score+5 {
		t.Fatalf("scene alignment bonus: aligned %v, unaligned %v", aligned[0].Score, unaligned[0].Score)
	}
	if aligned[0].Features["scene_aligned"] != 1 {
		t.Fatalf("expected scene_aligned feature, got %v", aligned[0].Features)
	}
}

func TestSelect_MaxClipsHonoured(t *testing.T) {
	s := NewClipSelector(testLogger(t), ClipSelectorConfig{MinSeconds: 15, MaxSeconds: 20, MaxClips: 2})
	var segments []types.TranscriptSegment
	for i := 0; i < 10; i++ {
		start := float64(i * 30)
		segments = append(segments, speech(start, start+16, wordsFor(40)))
	}
	out := s.Select(400, segments, nil, nil)
	if len(out) != 2 {
		t.Fatalf("expected MaxClips=2 candidates, got %d", len(out))
	}
}
