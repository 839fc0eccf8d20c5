package services

import (
	"reflect"
	"strings"
	"testing"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return log
}

func keep(start, end float64) types.EDLSegment {
	return types.EDLSegment{Start: start, End: end, Kind: types.SegmentKeep}
}

func TestValidate_ClipsAndDropsSegments(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	doc := types.PlanDocument{
		StoryArc: types.StoryArc{HookT: 1, ClimaxT: 5, ResolutionT: 57},
		EDL: []types.EDLSegment{
			{Start: -5, End: 10, Kind: "keep"},
			{Start: 55, End: 120, Kind: "keep"},
			{Start: 20, End: 20.05, Kind: "keep"},
			{Start: 30, End: 40, Kind: "banana"},
		},
	}
	res, err := v.Validate(doc, 60, 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []types.EDLSegment{
		{Start: 0, End: 10, Kind: "keep"},
		{Start: 55, End: 60, Kind: "keep"},
	}
	if !reflect.DeepEqual(res.Document.EDL, want) {
		t.Fatalf("EDL = %+v, want %+v", res.Document.EDL, want)
	}
	if res.TotalKeep != 15 {
		t.Fatalf("TotalKeep = %v, want 15", res.TotalKeep)
	}
	if len(res.Warnings) != 4 {
		t.Fatalf("expected 4 warnings (two clips, one short drop, one unknown kind), got %v", res.Warnings)
	}
}

func TestValidate_MergesOverlappingKeeps(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	doc := types.PlanDocument{
		EDL: []types.EDLSegment{
			{Start: 10, End: 20, Kind: "keep", Reason: "first"},
			{Start: 15, End: 25, Kind: "keep", Reason: "second"},
			{Start: 40, End: 50, Kind: "keep"},
		},
	}
	res, err := v.Validate(doc, 100, 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.Document.EDL) != 2 {
		t.Fatalf("expected 2 segments after merge, got %+v", res.Document.EDL)
	}
	merged := res.Document.EDL[0]
	if merged.Start != 10 || merged.End != 25 {
		t.Fatalf("merged = [%v, %v], want [10, 25]", merged.Start, merged.End)
	}
	if merged.Reason != "first; second" {
		t.Fatalf("merged reason = %q, want concatenation", merged.Reason)
	}
	if res.TotalKeep != 25 {
		t.Fatalf("TotalKeep = %v, want 25", res.TotalKeep)
	}
}

func TestValidate_EmptyPlanRejected(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	doc := types.PlanDocument{
		EDL: []types.EDLSegment{
			{Start: 10, End: 20, Kind: "skip"},
		},
	}
	_, err := v.Validate(doc, 60, 0)
	if err == nil {
		t.Fatal("expected rejection for plan with no keep segments")
	}
	if apperr.CodeOf(err) != apperr.CodeUnrenderablePlan {
		t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeUnrenderablePlan)
	}
}

func TestValidate_ZeroDuration(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	_, err := v.Validate(types.PlanDocument{EDL: []types.EDLSegment{keep(0, 1)}}, 0, 0)
	if apperr.CodeOf(err) != apperr.CodeEmptySource {
		t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeEmptySource)
	}
}

func TestValidate_CoverageWarningAndStrictMode(t *testing.T) {
	// 10s kept out of 100s with a 50% target is far outside tolerance.
	doc := types.PlanDocument{EDL: []types.EDLSegment{keep(0, 10)}}

	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	res, err := v.Validate(doc, 100, 0.5)
	if err != nil {
		t.Fatalf("lenient Validate: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "coverage_warning") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage warning, got %v", res.Warnings)
	}

	strict := NewEDLValidator(testLogger(t), ValidatorConfig{StrictCoverage: true})
	if _, err := strict.Validate(doc, 100, 0.5); apperr.CodeOf(err) != apperr.CodeInvalidPlan {
		t.Fatalf("strict code = %s, want %s", apperr.CodeOf(err), apperr.CodeInvalidPlan)
	}
}

func TestValidate_CoverageInsideToleranceIsSilent(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{CoverageTolerancePct: 10})
	// Target 50s, tolerance 5s, keep 47s.
	doc := types.PlanDocument{EDL: []types.EDLSegment{keep(0, 47)}}
	res, err := v.Validate(doc, 100, 0.5)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "coverage_warning") {
			t.Fatalf("unexpected coverage warning: %v", res.Warnings)
		}
	}
}

func TestValidate_StoryArcWarnings(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})

	unordered := types.PlanDocument{
		StoryArc: types.StoryArc{HookT: 50, ClimaxT: 10, ResolutionT: 30},
		EDL:      []types.EDLSegment{keep(0, 60)},
	}
	res, err := v.Validate(unordered, 60, 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.Warnings) == 0 || !strings.HasPrefix(res.Warnings[0], "story_arc_warning") {
		t.Fatalf("expected story arc warning, got %v", res.Warnings)
	}

	outside := types.PlanDocument{
		StoryArc: types.StoryArc{HookT: 1, ClimaxT: 30, ResolutionT: 55},
		EDL:      []types.EDLSegment{keep(0, 10), keep(50, 60)},
	}
	res, err = v.Validate(outside, 60, 0)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "outside keep segments") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected outside-keep warning for climax, got %v", res.Warnings)
	}
}

func TestValidate_FixedPoint(t *testing.T) {
	v := NewEDLValidator(testLogger(t), ValidatorConfig{})
	doc := types.PlanDocument{
		StoryArc: types.StoryArc{HookT: 1, ClimaxT: 15, ResolutionT: 44},
		KeyMoments: []types.KeyMoment{
			{Start: 2, End: 8, Role: "hook"},
			{Start: 90, End: 80},
		},
		EDL: []types.EDLSegment{
			{Start: -2, End: 20.0004, Kind: "KEEP", Reason: "a"},
			{Start: 10, End: 30, Kind: "keep", Reason: "b"},
			{Start: 40, End: 45, Kind: "keep"},
			{Start: 30, End: 40, Kind: "skip"},
		},
	}
	first, err := v.Validate(doc, 50, 0)
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, err := v.Validate(first.Document, 50, 0)
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if !reflect.DeepEqual(first.Document, second.Document) {
		t.Fatalf("validation not a fixed point:\nfirst  %+v\nsecond %+v", first.Document, second.Document)
	}
	if second.TotalKeep != first.TotalKeep {
		t.Fatalf("TotalKeep drifted: %v -> %v", first.TotalKeep, second.TotalKeep)
	}
	if len(second.Warnings) != 0 {
		t.Fatalf("re-validation produced warnings: %v", second.Warnings)
	}
}

func TestSanitizeKeyMoments(t *testing.T) {
	out := sanitizeKeyMoments([]types.KeyMoment{
		{Start: -1, End: 5},
		{Start: 10, End: 10},
		{Start: 55, End: 70},
	}, 60)
	want := []types.KeyMoment{
		{Start: 0, End: 5},
		{Start: 55, End: 60},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("sanitizeKeyMoments = %+v, want %+v", out, want)
	}
}
