package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/handlers"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/types"
)

type enqueuerStub struct {
	mu       sync.Mutex
	jobTypes []string
}

func (s *enqueuerStub) Enqueue(_ context.Context, _ *gorm.DB, mediaID uuid.UUID, jobType string, _ map[string]any) (*types.JobRun, error) {
	s.mu.Lock()
	s.jobTypes = append(s.jobTypes, jobType)
	s.mu.Unlock()
	return &types.JobRun{
		ID:      uuid.New(),
		MediaID: mediaID,
		JobType: jobType,
		Status:  types.JobStatusQueued,
	}, nil
}

type bucketStub struct{ services.BucketService }

func (bucketStub) DeletePrefix(context.Context, string) error { return nil }

type apiFixture struct {
	router      *gin.Engine
	media       repos.MediaRepo
	transcripts repos.TranscriptRepo
	scenes      repos.SceneRepo
	enqueuer    *enqueuerStub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
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
		&types.Scene{}, &types.ClipCandidate{}, &types.Plan{}, &types.Render{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mediaRepo := repos.NewMediaRepo(db, log)
	jobRepo := repos.NewJobRunRepo(db, log)
	transcriptRepo := repos.NewTranscriptRepo(db, log)
	sceneRepo := repos.NewSceneRepo(db, log)
	clipRepo := repos.NewClipCandidateRepo(db, log)
	planRepo := repos.NewPlanRepo(db, log)
	renderRepo := repos.NewRenderRepo(db, log)
	enq := &enqueuerStub{}

	router := NewRouter(RouterConfig{
		MediaHandler:  handlers.NewMediaHandler(log, mediaRepo, jobRepo, transcriptRepo, sceneRepo, clipRepo, enq, bucketStub{}),
		PlanHandler:   handlers.NewPlanHandler(log, mediaRepo, planRepo, renderRepo, enq),
		RenderHandler: handlers.NewRenderHandler(renderRepo),
		JobHandler:    handlers.NewJobHandler(log, jobRepo, nil),
	})
	return &apiFixture{
		router:      router,
		media:       mediaRepo,
		transcripts: transcriptRepo,
		scenes:      sceneRepo,
		enqueuer:    enq,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedMedia(t *testing.T, status string, duration float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := f.media.Create(context.Background(), nil, []*types.Media{{
		ID:        id,
		SourceURI: "gs://bucket/talk.mp4",
		Status:    status,
		Duration:  duration,
	}}); err != nil {
		t.Fatalf("create media: %v", err)
	}
	return id
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope handlers.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return envelope.Error.Code
}

func TestArtefactRoutes(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	mediaID := f.seedMedia(t, types.MediaStatusReady, 60)
	base := "/api/media/" + mediaID.String()

	if rec := f.request(t, http.MethodGet, base+"/transcript", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("transcript before enrichment = %d, want 404", rec.Code)
	}
	if err := f.transcripts.Upsert(ctx, nil, &types.Transcript{
		ID:       uuid.New(),
		MediaID:  mediaID,
		Segments: datatypes.JSON([]byte(`[{"start":0,"end":3,"text":"hello"}]`)),
		Language: "en-US",
	}); err != nil {
		t.Fatalf("upsert transcript: %v", err)
	}
	rec := f.request(t, http.MethodGet, base+"/transcript", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"transcript"`) {
		t.Fatalf("transcript body = %s", rec.Body.String())
	}

	if rec := f.request(t, http.MethodGet, base+"/scenes", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("scenes before indexing = %d, want 404", rec.Code)
	}
	if err := f.scenes.ReplaceForMedia(ctx, nil, mediaID, []*types.Scene{
		{ID: uuid.New(), MediaID: mediaID, Index: 0, Start: 0, End: 12, Description: "intro"},
	}); err != nil {
		t.Fatalf("seed scenes: %v", err)
	}
	if rec := f.request(t, http.MethodGet, base+"/scenes", ""); rec.Code != http.StatusOK {
		t.Fatalf("scenes = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// Candidates answer with an empty list rather than 404: an unscored media
	// simply has none yet.
	rec = f.request(t, http.MethodGet, base+"/candidates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"candidates"`) {
		t.Fatalf("candidates body = %s", rec.Body.String())
	}

	if rec := f.request(t, http.MethodGet, base+"/clips", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("retired clips path = %d, want 404", rec.Code)
	}
}

func TestHeuristicPlanRejectsUnplayableMedia(t *testing.T) {
	f := newAPIFixture(t)
	body := `{"start":0,"end":10,"remove_silence":true}`

	registered := f.seedMedia(t, types.MediaStatusRegistered, 0)
	rec := f.request(t, http.MethodPost, "/api/media/"+registered.String()+"/plans/heuristic", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unprobed media = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != apperr.CodeInvalidRequest {
		t.Fatalf("error code = %s, want %s", code, apperr.CodeInvalidRequest)
	}

	zero := f.seedMedia(t, types.MediaStatusReady, 0)
	rec = f.request(t, http.MethodPost, "/api/media/"+zero.String()+"/plans/heuristic", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero-duration media = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != apperr.CodeEmptySource {
		t.Fatalf("error code = %s, want %s", code, apperr.CodeEmptySource)
	}
	if len(f.enqueuer.jobTypes) != 0 {
		t.Fatalf("rejected requests enqueued jobs: %v", f.enqueuer.jobTypes)
	}

	ready := f.seedMedia(t, types.MediaStatusReady, 60)
	rec = f.request(t, http.MethodPost, "/api/media/"+ready.String()+"/plans/heuristic", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ready media = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(f.enqueuer.jobTypes) != 1 || f.enqueuer.jobTypes[0] != types.JobTypePlanHeuristic {
		t.Fatalf("enqueued = %v, want [%s]", f.enqueuer.jobTypes, types.JobTypePlanHeuristic)
	}
}

func TestEnrichAcceptsNamedKinds(t *testing.T) {
	f := newAPIFixture(t)
	mediaID := f.seedMedia(t, types.MediaStatusReady, 60)
	path := "/api/media/" + mediaID.String() + "/enrich"

	rec := f.request(t, http.MethodPost, path, `{"kinds":["transcribe"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enrich = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(f.enqueuer.jobTypes) != 1 || f.enqueuer.jobTypes[0] != types.JobTypeTranscribe {
		t.Fatalf("enqueued = %v, want [%s]", f.enqueuer.jobTypes, types.JobTypeTranscribe)
	}

	rec = f.request(t, http.MethodPost, path, `{"kinds":["reticulate_splines"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != apperr.CodeInvalidRequest {
		t.Fatalf("error code = %s, want %s", code, apperr.CodeInvalidRequest)
	}
}
