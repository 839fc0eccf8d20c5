package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/types"
)

func TestTargetFrame(t *testing.T) {
	cases := []struct {
		aspect string
		w, h   int
	}{
		{"16:9", 1920, 1080},
		{"9:16", 1080, 1920},
		{"1:1", 1080, 1080},
		{"4:5", 1080, 1350},
	}
	for _, tc := range cases {
		t.Run(tc.aspect, func(t *testing.T) {
			w, h, err := TargetFrame(tc.aspect, 1080)
			if err != nil {
				t.Fatalf("TargetFrame(%q): %v", tc.aspect, err)
			}
			if w != tc.w || h != tc.h {
				t.Fatalf("TargetFrame(%q) = %dx%d, want %dx%d", tc.aspect, w, h, tc.w, tc.h)
			}
			if w%2 != 0 || h%2 != 0 {
				t.Fatalf("dimensions must be even, got %dx%d", w, h)
			}
		})
	}

	for _, bad := range []string{"", "16", "16:0", "a:b", "-16:9"} {
		if _, _, err := TargetFrame(bad, 1080); err == nil {
			t.Fatalf("TargetFrame(%q) should fail", bad)
		}
	}
}

func TestPrepareSegments(t *testing.T) {
	doc := types.PlanDocument{
		EDL: []types.EDLSegment{
			{Start: 0, End: 10, Kind: "keep"},
			{Start: 10.005, End: 20, Kind: "keep"},
			{Start: 25, End: 25.01, Kind: "keep"},
			{Start: 30, End: 40, Kind: "skip"},
			{Start: 50, End: 60, Kind: "keep"},
		},
	}
	out := PrepareSegments(doc, 30)
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %+v", out)
	}
	if out[0].Start != 0 || out[0].End != 20 {
		t.Fatalf("merge failed: %+v", out[0])
	}
	if out[1].Start != 50 || out[1].End != 60 {
		t.Fatalf("unexpected final segment: %+v", out[1])
	}
}

func TestPrepareSegments_DropsSubFrame(t *testing.T) {
	// At 10 fps a frame lasts 100 ms; a 50 ms segment cannot hold one.
	doc := types.PlanDocument{
		EDL: []types.EDLSegment{{Start: 0, End: 0.05, Kind: "keep"}},
	}
	if out := PrepareSegments(doc, 10); len(out) != 0 {
		t.Fatalf("expected sub-frame segment dropped, got %+v", out)
	}
	if out := PrepareSegments(doc, 30); len(out) != 1 {
		t.Fatalf("50ms holds a frame at 30fps, got %+v", out)
	}
}

func TestSourceToOutput(t *testing.T) {
	segments := []types.EDLSegment{
		{Start: 10, End: 20, Kind: "keep"},
		{Start: 40, End: 50, Kind: "keep"},
	}
	cases := []struct {
		in   float64
		out  float64
		ok   bool
	}{
		{10, 0, true},
		{15, 5, true},
		{20, 10, true},
		{40, 10, true},
		{45, 15, true},
		{30, 0, false},
		{5, 0, false},
	}
	for _, tc := range cases {
		got, ok := SourceToOutput(tc.in, segments)
		if ok != tc.ok || (ok && got != tc.out) {
			t.Fatalf("SourceToOutput(%v) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.out, tc.ok)
		}
	}
}

func TestBuildOutputSRT(t *testing.T) {
	segments := []types.EDLSegment{
		{Start: 10, End: 20, Kind: "keep"},
		{Start: 40, End: 50, Kind: "keep"},
	}
	transcript := []types.TranscriptSegment{
		{Start: 11, End: 13, Text: "inside first"},
		{Start: 25, End: 30, Text: "entirely cut"},
		{Start: 39, End: 42, Text: "straddles the cut"},
	}
	srt := BuildOutputSRT(transcript, segments)
	if strings.Contains(srt, "entirely cut") {
		t.Fatalf("cut text leaked into SRT:\n%s", srt)
	}
	if !strings.Contains(srt, "inside first") || !strings.Contains(srt, "straddles the cut") {
		t.Fatalf("expected kept cues in SRT:\n%s", srt)
	}
	// "inside first" plays at output 1s..3s.
	if !strings.Contains(srt, "00:00:01,000 --> 00:00:03,000") {
		t.Fatalf("first cue not shifted onto output timeline:\n%s", srt)
	}
	// The straddling cue is clipped to [40, 42] -> output [10, 12].
	if !strings.Contains(srt, "00:00:10,000 --> 00:00:12,000") {
		t.Fatalf("straddling cue not clipped:\n%s", srt)
	}
}

func TestBuildOutputSRT_EmptyTranscript(t *testing.T) {
	if srt := BuildOutputSRT(nil, []types.EDLSegment{{Start: 0, End: 10, Kind: "keep"}}); srt != "" {
		t.Fatalf("expected empty SRT, got %q", srt)
	}
}

func TestSRTTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:        "00:00:00,000",
		1.5:      "00:00:01,500",
		61.042:   "00:01:01,042",
		3661.999: "01:01:01,999",
		-5:       "00:00:00,000",
	}
	for in, want := range cases {
		if got := srtTimestamp(in); got != want {
			t.Fatalf("srtTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifySegmentError(t *testing.T) {
	base := errors.New("exit status 1")
	cases := []struct {
		output string
		code   string
	}{
		{"Connection refused", apperr.CodeSourceUnreachable},
		{"HTTP error 404 Not Found", apperr.CodeSourceUnreachable},
		{"Invalid data found when processing input", apperr.CodeDecodeError},
		{"Error while decoding stream", apperr.CodeDecodeError},
		{"something else entirely", apperr.CodeEncodeError},
	}
	for _, tc := range cases {
		err := classifySegmentError(tc.output, base)
		if code := apperr.CodeOf(err); code != tc.code {
			t.Fatalf("classifySegmentError(%q) = %s, want %s", tc.output, code, tc.code)
		}
	}
}
