package services

import (
	"testing"

	"github.com/yungbote/storycut-backend/internal/types"
)

func frameAt(t float64, desc string) *types.Frame {
	return &types.Frame{T: t, Description: desc}
}

func TestIndex_NoCutsSingleScene(t *testing.T) {
	idx := NewSceneIndexer(testLogger(t))
	out := idx.Index(120, nil, nil)
	if len(out) != 1 {
		t.Fatalf("expected one scene, got %+v", out)
	}
	if out[0].Start != 0 || out[0].End != 120 || out[0].Index != 0 {
		t.Fatalf("unexpected scene: %+v", out[0])
	}
}

func TestIndex_ZeroDuration(t *testing.T) {
	idx := NewSceneIndexer(testLogger(t))
	if out := idx.Index(0, []float64{5}, nil); len(out) != 0 {
		t.Fatalf("expected no scenes for zero duration, got %+v", out)
	}
}

func TestIndex_SanitisesCuts(t *testing.T) {
	idx := NewSceneIndexer(testLogger(t))
	// Out-of-range, duplicate and unsorted cuts all collapse to {10, 20}.
	out := idx.Index(30, []float64{20, -1, 10, 10, 0, 30, 45}, nil)
	if len(out) != 3 {
		t.Fatalf("expected 3 scenes, got %+v", out)
	}
	wantBounds := [][2]float64{{0, 10}, {10, 20}, {20, 30}}
	for i, sc := range out {
		if sc.Index != i || sc.Start != wantBounds[i][0] || sc.End != wantBounds[i][1] {
			t.Fatalf("scene %d = %+v, want [%v, %v]", i, sc, wantBounds[i][0], wantBounds[i][1])
		}
	}
}

func TestIndex_DescribesFromFrames(t *testing.T) {
	idx := NewSceneIndexer(testLogger(t))
	frames := []*types.Frame{
		frameAt(1, "short"),
		frameAt(2, "a much longer description of the opening"),
		frameAt(12, "second scene"),
	}
	out := idx.Index(20, []float64{10}, frames)
	if len(out) != 2 {
		t.Fatalf("expected 2 scenes, got %+v", out)
	}
	if out[0].Description != "a much longer description of the opening | short" {
		t.Fatalf("scene 0 description = %q", out[0].Description)
	}
	if out[1].Description != "second scene" {
		t.Fatalf("scene 1 description = %q", out[1].Description)
	}
}

func TestDescribeInterval_CapsAndDedupes(t *testing.T) {
	frames := []*types.Frame{
		frameAt(1, "bbbb"),
		frameAt(2, "bbbb"),
		frameAt(3, "aaaaa"),
		frameAt(4, "cc"),
		frameAt(5, "d"),
		frameAt(6, "   "),
		nil,
		frameAt(15, "outside"),
	}
	got := describeInterval(0, 10, frames)
	if got != "aaaaa | bbbb | cc" {
		t.Fatalf("describeInterval = %q", got)
	}
	if describeInterval(20, 30, frames) != "" {
		t.Fatal("expected empty description with no frames inside")
	}
}

func TestDescribeInterval_BoundaryIsHalfOpen(t *testing.T) {
	frames := []*types.Frame{frameAt(10, "at the cut")}
	if got := describeInterval(0, 10, frames); got != "" {
		t.Fatalf("frame at end bound should belong to the next scene, got %q", got)
	}
	if got := describeInterval(10, 20, frames); got != "at the cut" {
		t.Fatalf("frame at start bound missing, got %q", got)
	}
}
