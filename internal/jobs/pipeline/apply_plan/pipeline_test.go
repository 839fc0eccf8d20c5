package apply_plan

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
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

type rendererStub struct {
	mu     sync.Mutex
	ratios []string
	fail   error
}

func (s *rendererStub) Render(_ context.Context, _ string, _ types.PlanDocument, opts services.RenderOptions) (*services.RenderResult, error) {
	s.mu.Lock()
	s.ratios = append(s.ratios, opts.AspectRatio)
	s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	return &services.RenderResult{OutputPath: opts.OutputPath}, nil
}

type toolsStub struct {
	services.MediaToolsService
	dir string
}

func (s toolsStub) WorkDir(string) (string, func(), error) { return s.dir, func() {}, nil }

type bucketStub struct{ services.BucketService }

func (bucketStub) UploadFromPath(context.Context, string, string) error { return nil }
func (bucketStub) GetPublicURL(key string) string                       { return "https://cdn.test/" + key }

type probeStub struct{ services.ProbeService }

func (probeStub) OutputDuration(context.Context, string) (float64, error) { return 9.9, nil }

type renderFixture struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     repos.JobRunRepo
	plans    repos.PlanRepo
	renders  repos.RenderRepo
	renderer *rendererStub
	pipeline *Pipeline
	mediaID  uuid.UUID
	planID   uuid.UUID
}

func newRenderFixture(t *testing.T) *renderFixture {
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
		&types.Plan{}, &types.Render{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &renderFixture{
		db:       db,
		log:      log,
		jobs:     repos.NewJobRunRepo(db, log),
		plans:    repos.NewPlanRepo(db, log),
		renders:  repos.NewRenderRepo(db, log),
		renderer: &rendererStub{},
		mediaID:  uuid.New(),
		planID:   uuid.New(),
	}
	mediaRepo := repos.NewMediaRepo(db, log)
	transcriptRepo := repos.NewTranscriptRepo(db, log)
	f.pipeline = New(log, app.Config{RenderDeadlineFactor: 5}, mediaRepo, f.plans,
		f.renders, transcriptRepo, f.renderer, toolsStub{dir: t.TempDir()},
		bucketStub{}, probeStub{})

	ctx := context.Background()
	if _, err := mediaRepo.Create(ctx, nil, []*types.Media{{
		ID:        f.mediaID,
		SourceURI: "gs://bucket/talk.mp4",
		Status:    types.MediaStatusReady,
		Duration:  60,
		HasAudio:  true,
	}}); err != nil {
		t.Fatalf("create media: %v", err)
	}
	doc := types.PlanDocument{
		EDL: []types.EDLSegment{{Start: 5, End: 15, Kind: types.SegmentKeep, Reason: "core"}},
	}
	docRaw, _ := json.Marshal(doc)
	if _, err := f.plans.Create(ctx, nil, []*types.Plan{{
		ID:               f.planID,
		MediaID:          f.mediaID,
		Mode:             types.PlanModeStory,
		Status:           types.PlanStatusValidated,
		Document:         datatypes.JSON(docRaw),
		TotalKeepSeconds: 10,
	}}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return f
}

func (f *renderFixture) run(t *testing.T) (*types.JobRun, error) {
	t.Helper()
	ctx := context.Background()
	payload := `{"media_id":"` + f.mediaID.String() + `","plan_id":"` + f.planID.String() + `","aspect_ratios":["16:9","9:16"]}`
	job := &types.JobRun{
		ID:          uuid.New(),
		MediaID:     f.mediaID,
		JobType:     types.JobTypeApplyPlan,
		Status:      types.JobStatusRunning,
		Attempt:     1,
		MaxAttempts: 3,
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

func TestRun_FansOutPerRatioAndReusesCompleted(t *testing.T) {
	f := newRenderFixture(t)
	ctx := context.Background()

	// The landscape output already landed on a previous attempt: the re-run
	// renders only the portrait ratio and still settles the plan.
	if _, err := f.renders.Create(ctx, nil, []*types.Render{{
		ID:          uuid.New(),
		MediaID:     f.mediaID,
		PlanID:      f.planID,
		AspectRatio: "16:9",
		Status:      types.RenderStatusCompleted,
		OutputURI:   "https://cdn.test/renders/existing.mp4",
	}}); err != nil {
		t.Fatalf("seed completed render: %v", err)
	}

	row, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if row.Status != types.JobStatusCompleted {
		t.Fatalf("job status = %s (%s), want completed", row.Status, row.Error)
	}
	if len(f.renderer.ratios) != 1 || f.renderer.ratios[0] != "9:16" {
		t.Fatalf("rendered ratios = %v, want only 9:16", f.renderer.ratios)
	}

	var result map[string]any
	if err := json.Unmarshal(row.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if n, _ := result["reused"].(float64); int(n) != 1 {
		t.Fatalf("reused = %v, want 1", result["reused"])
	}

	plan, err := f.plans.GetByID(ctx, nil, f.planID)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if plan.Status != types.PlanStatusRendered {
		t.Fatalf("plan status = %s, want rendered", plan.Status)
	}
	portrait, err := f.renders.ActiveByPlanAndRatio(ctx, nil, f.planID, "9:16")
	if err != nil {
		t.Fatalf("load portrait render: %v", err)
	}
	if portrait == nil || portrait.Status != types.RenderStatusCompleted {
		t.Fatalf("portrait render = %+v, want completed", portrait)
	}
	if portrait.OutputURI == "" || portrait.DurationSeconds != 9.9 {
		t.Fatalf("portrait output not recorded: %+v", portrait)
	}
}

func TestRun_ReportsEveryFailedRatio(t *testing.T) {
	f := newRenderFixture(t)
	ctx := context.Background()
	f.renderer.fail = apperr.Newf(apperr.CodeDecodeError, "filter graph rejected")

	row, err := f.run(t)
	if err == nil {
		t.Fatal("Run succeeded with a failing renderer")
	}
	for _, ratio := range []string{"16:9", "9:16"} {
		if !strings.Contains(err.Error(), "render "+ratio) {
			t.Fatalf("error %q does not mention ratio %s", err, ratio)
		}
	}
	if row.Status != types.JobStatusRunning {
		t.Fatalf("job status = %s, want running for the worker to settle", row.Status)
	}

	plan, err := f.plans.GetByID(ctx, nil, f.planID)
	if err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if plan.Status != types.PlanStatusValidated {
		t.Fatalf("plan status = %s, want validated for a retry", plan.Status)
	}
	rows, err := f.renders.ListByPlan(ctx, nil, f.planID)
	if err != nil {
		t.Fatalf("ListByPlan: %v", err)
	}
	for _, r := range rows {
		if r.Status != types.RenderStatusFailed {
			t.Fatalf("render %s status = %s, want failed", r.AspectRatio, r.Status)
		}
	}
}
