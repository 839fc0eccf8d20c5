package plan_story

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/apperr"
	jobrt "github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

type plannerStub struct {
	calls int
	doc   types.PlanDocument
}

func (s *plannerStub) Plan(_ context.Context, _ float64, _ services.CompressedContext, _ services.StoryRequest, _ float64) (*services.PlannerOutput, error) {
	s.calls++
	return &services.PlannerOutput{Document: s.doc, ModelName: "stub-model"}, nil
}

type storyFixture struct {
	db          *gorm.DB
	log         *logger.Logger
	media       repos.MediaRepo
	jobs        repos.JobRunRepo
	transcripts repos.TranscriptRepo
	frames      repos.FrameRepo
	scenes      repos.SceneRepo
	plans       repos.PlanRepo
	planner     *plannerStub
	pipeline    *Pipeline
	mediaID     uuid.UUID
	planID      uuid.UUID
}

func newStoryFixture(t *testing.T) *storyFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "registry.db")), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Media{}, &types.JobRun{}, &types.Transcript{},
		&types.Frame{}, &types.Scene{}, &types.Plan{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &storyFixture{
		db:          db,
		log:         log,
		media:       repos.NewMediaRepo(db, log),
		jobs:        repos.NewJobRunRepo(db, log),
		transcripts: repos.NewTranscriptRepo(db, log),
		frames:      repos.NewFrameRepo(db, log),
		scenes:      repos.NewSceneRepo(db, log),
		plans:       repos.NewPlanRepo(db, log),
		mediaID:     uuid.New(),
		planID:      uuid.New(),
	}
	f.planner = &plannerStub{doc: types.PlanDocument{
		StoryArc: types.StoryArc{HookT: 0, ClimaxT: 5, ResolutionT: 10},
		EDL:      []types.EDLSegment{{Start: 0, End: 10, Kind: types.SegmentKeep, Reason: "opening"}},
	}}
	compressor := services.NewCompressor(log, services.CompressorConfig{})
	validator := services.NewEDLValidator(log, services.ValidatorConfig{})
	f.pipeline = New(log, app.Config{}, f.media, f.transcripts, f.frames, f.scenes,
		f.plans, compressor, f.planner, validator)

	ctx := context.Background()
	if _, err := f.media.Create(ctx, nil, []*types.Media{{
		ID:        f.mediaID,
		SourceURI: "gs://bucket/talk.mp4",
		Status:    types.MediaStatusReady,
		Duration:  60,
		HasAudio:  true,
	}}); err != nil {
		t.Fatalf("create media: %v", err)
	}
	if _, err := f.plans.Create(ctx, nil, []*types.Plan{{
		ID:          f.planID,
		MediaID:     f.mediaID,
		Mode:        types.PlanModeStory,
		Status:      types.PlanStatusDraft,
		StoryPrompt: "tell the story",
	}}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return f
}

func (f *storyFixture) run(t *testing.T) (*types.JobRun, error) {
	t.Helper()
	ctx := context.Background()
	payload := `{"media_id":"` + f.mediaID.String() + `","plan_id":"` + f.planID.String() + `"}`
	job := &types.JobRun{
		ID:          uuid.New(),
		MediaID:     f.mediaID,
		JobType:     types.JobTypePlanStory,
		Status:      types.JobStatusRunning,
		Attempt:     1,
		MaxAttempts: 2,
		Payload:     datatypes.JSON([]byte(payload)),
	}
	if _, err := f.jobs.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	jc := jobrt.NewContext(ctx, f.db, job, f.jobs, nil, f.log)
	err := f.pipeline.Run(jc)
	row, getErr := f.jobs.GetByID(ctx, nil, job.ID)
	if getErr != nil {
		t.Fatalf("reload job: %v", getErr)
	}
	return row, err
}

func TestRun_PlansFromTranscriptAlone(t *testing.T) {
	f := newStoryFixture(t)
	ctx := context.Background()

	// Only a transcript exists: scene indexing and frame description were
	// never requested for this media. Planning proceeds regardless.
	segments := []types.TranscriptSegment{{Start: 0, End: 12, Text: "welcome back"}}
	raw, _ := json.Marshal(segments)
	if err := f.transcripts.Upsert(ctx, nil, &types.Transcript{
		ID:       uuid.New(),
		MediaID:  f.mediaID,
		Segments: datatypes.JSON(raw),
	}); err != nil {
		t.Fatalf("upsert transcript: %v", err)
	}

	row, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if row.Status != types.JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want completed", row.Status, row.Error)
	}
	if f.planner.calls != 1 {
		t.Fatalf("planner calls = %d, want 1", f.planner.calls)
	}
	plan, err := f.plans.GetByID(ctx, nil, f.planID)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if plan.Status != types.PlanStatusValidated {
		t.Fatalf("plan status = %s, want validated", plan.Status)
	}
}

func TestRun_NoSignalFailsWithoutRequeue(t *testing.T) {
	f := newStoryFixture(t)
	ctx := context.Background()

	row, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if row.Status != types.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", row.Status)
	}
	if row.ErrorCode != apperr.CodeInsufficientSignal {
		t.Fatalf("error code = %s, want %s", row.ErrorCode, apperr.CodeInsufficientSignal)
	}
	plan, err := f.plans.GetByID(ctx, nil, f.planID)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if plan.Status != types.PlanStatusRejected {
		t.Fatalf("plan status = %s, want rejected", plan.Status)
	}
}

func TestRun_WaitsOnlyForInFlightEnrichment(t *testing.T) {
	f := newStoryFixture(t)
	ctx := context.Background()

	// A transcription still in flight blocks; once it completes with its
	// artefact stored, planning goes through.
	upstream := &types.JobRun{
		ID:          uuid.New(),
		MediaID:     f.mediaID,
		JobType:     types.JobTypeTranscribe,
		Status:      types.JobStatusRunning,
		Attempt:     1,
		MaxAttempts: 3,
	}
	if _, err := f.jobs.Create(ctx, nil, []*types.JobRun{upstream}); err != nil {
		t.Fatalf("create upstream: %v", err)
	}

	if _, err := f.run(t); err != jobrt.ErrPreconditionNotMet {
		t.Fatalf("Run = %v, want ErrPreconditionNotMet while upstream runs", err)
	}

	if err := f.jobs.UpdateFields(ctx, nil, upstream.ID, map[string]interface{}{
		"status": types.JobStatusCompleted,
	}); err != nil {
		t.Fatalf("complete upstream: %v", err)
	}
	segments := []types.TranscriptSegment{{Start: 0, End: 8, Text: "hello"}}
	raw, _ := json.Marshal(segments)
	if err := f.transcripts.Upsert(ctx, nil, &types.Transcript{
		ID:       uuid.New(),
		MediaID:  f.mediaID,
		Segments: datatypes.JSON(raw),
	}); err != nil {
		t.Fatalf("upsert transcript: %v", err)
	}

	row, err := f.run(t)
	if err != nil {
		t.Fatalf("Run after upstream completed: %v", err)
	}
	if row.Status != types.JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want completed", row.Status, row.Error)
	}
}
