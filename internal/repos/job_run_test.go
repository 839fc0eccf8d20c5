package repos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "registry.db")), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Media{},
		&types.JobRun{},
		&types.Transcript{},
		&types.SilenceMap{},
		&types.SceneCuts{},
		&types.Frame{},
		&types.Scene{},
		&types.ClipCandidate{},
		&types.Plan{},
		&types.Render{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func queuedJob(mediaID uuid.UUID, jobType string, createdAt time.Time) *types.JobRun {
	return &types.JobRun{
		ID:          uuid.New(),
		MediaID:     mediaID,
		JobType:     jobType,
		Status:      types.JobStatusQueued,
		Attempt:     1,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestClaimNextRunnable_OldestFirstAndExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(testDB(t), testLogger(t))
	mediaID := uuid.New()

	older := queuedJob(mediaID, types.JobTypeProbe, time.Now().Add(-2*time.Minute))
	newer := queuedJob(mediaID, types.JobTypeTranscribe, time.Now().Add(-1*time.Minute))
	if _, err := repo.Create(ctx, nil, []*types.JobRun{older, newer}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first == nil || first.ID != older.ID {
		t.Fatalf("claimed %+v, want oldest %s", first, older.ID)
	}
	if first.Status != types.JobStatusRunning {
		t.Fatalf("claimed status = %s, want running", first.Status)
	}
	row, err := repo.GetByID(ctx, nil, older.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != types.JobStatusRunning || row.StartedAt == nil || row.HeartbeatAt == nil {
		t.Fatalf("row not flipped to running: %+v", row)
	}

	second, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if second == nil || second.ID != newer.ID {
		t.Fatalf("second claim = %+v, want %s", second, newer.ID)
	}

	// Both rows are running with fresh heartbeats now; nothing left to claim.
	third, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if third != nil {
		t.Fatalf("claimed an already-running job: %+v", third)
	}
}

func TestClaimNextRunnable_HonoursNotBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(testDB(t), testLogger(t))

	job := queuedJob(uuid.New(), types.JobTypeProbe, time.Now())
	later := time.Now().Add(10 * time.Minute)
	job.NotBefore = &later
	if _, err := repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed a delayed job before not_before: %+v", claimed)
	}
}

func TestClaimNextRunnable_TakesOverStaleRunning(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(testDB(t), testLogger(t))

	job := queuedJob(uuid.New(), types.JobTypeTranscribe, time.Now().Add(-3*time.Hour))
	job.Status = types.JobStatusRunning
	job.Attempt = 2
	stale := time.Now().Add(-2 * time.Hour)
	job.HeartbeatAt = &stale
	if _, err := repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("stale running job not taken over: %+v", claimed)
	}
	// Takeover is not a retry: the attempt counter is untouched.
	row, err := repo.GetByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Attempt != 2 {
		t.Fatalf("attempt = %d after takeover, want 2", row.Attempt)
	}
	if row.HeartbeatAt == nil || !row.HeartbeatAt.After(stale) {
		t.Fatalf("heartbeat not refreshed on takeover: %+v", row.HeartbeatAt)
	}
}

func TestClaimNextRunnable_LeavesFreshRunningAlone(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(testDB(t), testLogger(t))

	job := queuedJob(uuid.New(), types.JobTypeProbe, time.Now())
	job.Status = types.JobStatusRunning
	now := time.Now()
	job.HeartbeatAt = &now
	if _, err := repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("took over a live job: %+v", claimed)
	}
}

func TestUpdateFieldsIfStatus_TerminalRowsStayTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepo(testDB(t), testLogger(t))

	job := queuedJob(uuid.New(), types.JobTypeProbe, time.Now())
	job.Status = types.JobStatusCompleted
	if _, err := repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := repo.UpdateFieldsIfStatus(ctx, nil, job.ID,
		[]string{types.JobStatusRunning},
		map[string]interface{}{"status": types.JobStatusFailed})
	if err != nil {
		t.Fatalf("UpdateFieldsIfStatus: %v", err)
	}
	if ok {
		t.Fatal("guard matched a terminal row")
	}
	row, err := repo.GetByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != types.JobStatusCompleted {
		t.Fatalf("terminal row mutated to %s", row.Status)
	}
}
