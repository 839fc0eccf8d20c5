package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/clients/redis"
	"github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/types"
)

const (
	pollInterval      = 1 * time.Second
	heartbeatInterval = 15 * time.Second
	preconditionDelay = 10 * time.Second
)

// Worker claims runnable job_run rows and dispatches them to registered
// handlers. Each pool slot is an independent claim loop; the database row
// lock arbitrates between slots and between instances.
type Worker struct {
	log      *logger.Logger
	cfg      app.Config
	db       *gorm.DB
	repo     repos.JobRunRepo
	registry *runtime.Registry
	cancels  redis.CancelBus
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(log *logger.Logger, cfg app.Config, db *gorm.DB, repo repos.JobRunRepo, registry *runtime.Registry, cancels redis.CancelBus) *Worker {
	return &Worker{
		log:      log.With("component", "Worker"),
		cfg:      cfg,
		db:       db,
		repo:     repo,
		registry: registry,
		cancels:  cancels,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	n := w.cfg.WorkerPoolSize
	if n <= 0 {
		n = 1
	}
	w.log.Info("Starting worker pool", "slots", n)
	slotDone := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(slot int) {
			defer func() { slotDone <- struct{}{} }()
			w.loop(ctx, slot)
		}(i)
	}
	go func() {
		for i := 0; i < n; i++ {
			<-slotDone
		}
		close(w.done)
	}()
}

func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) loop(ctx context.Context, slot int) {
	log := w.log.With("slot", slot)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
		}
		for {
			job, err := w.repo.ClaimNextRunnable(ctx, nil, w.cfg.StaleRunning())
			if err != nil {
				log.Error("Claim failed", "error", err)
				break
			}
			if job == nil {
				break
			}
			w.execute(ctx, log, job)
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			default:
			}
		}
	}
}

func (w *Worker) execute(ctx context.Context, log *logger.Logger, job *types.JobRun) {
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.cancels, log.With("job_id", job.ID, "job_type", job.JobType))

	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		jc.Fail("dispatch", apperr.Newf(apperr.CodeInvalidRequest, "no handler registered for job_type=%s", job.JobType))
		return
	}

	stopBeat := w.startHeartbeat(ctx, job.ID)
	defer stopBeat()

	var runErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Handler panicked", "job_id", job.ID, "panic", rec, "stack", string(debug.Stack()))
				runErr = fmt.Errorf("handler panic: %v", rec)
			}
		}()
		runErr = handler.Run(jc)
	}()

	switch {
	case runErr == nil:
		if job.Status == types.JobStatusRunning {
			// Handler returned nil without terminating the run itself.
			jc.Succeed("done", nil)
		}
	case errors.Is(runErr, runtime.ErrPreconditionNotMet):
		log.Info("Preconditions not met, requeueing", "job_id", job.ID, "job_type", job.JobType)
		jc.Requeue(preconditionDelay)
	case errors.Is(runErr, runtime.ErrCancelled):
		jc.MarkCancelled(job.Stage)
	default:
		stage := job.Stage
		if stage == "" {
			stage = "run"
		}
		jc.Fail(stage, runErr)
		w.scheduleRetry(ctx, log, job, runErr)
	}
}

// scheduleRetry creates the successor row for a retryable failure: same type,
// same payload, attempt+1, delayed by exponential backoff with jitter. The
// failed row itself stays immutable.
func (w *Worker) scheduleRetry(ctx context.Context, log *logger.Logger, job *types.JobRun, cause error) {
	if job.Status != types.JobStatusFailed {
		return
	}
	if !apperr.Retryable(cause) {
		return
	}
	if job.Attempt >= job.MaxAttempts {
		log.Warn("Attempts exhausted", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempt)
		return
	}
	backoff := w.cfg.RetryBackoffBase() * time.Duration(math.Pow(2, float64(job.Attempt-1)))
	jitter := time.Duration(rand.Int63n(int64(w.cfg.RetryJitter()) + 1))
	notBefore := time.Now().Add(backoff + jitter)
	successor := &types.JobRun{
		ID:          uuid.New(),
		MediaID:     job.MediaID,
		JobType:     job.JobType,
		Status:      types.JobStatusQueued,
		Attempt:     job.Attempt + 1,
		MaxAttempts: job.MaxAttempts,
		Payload:     job.Payload,
		NotBefore:   &notBefore,
	}
	if _, err := w.repo.Create(ctx, nil, []*types.JobRun{successor}); err != nil {
		log.Error("Failed to enqueue retry", "job_id", job.ID, "error", err)
		return
	}
	log.Info("Scheduled retry", "job_id", job.ID, "retry_job_id", successor.ID, "attempt", successor.Attempt, "not_before", notBefore)
}

func (w *Worker) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				_ = w.repo.Heartbeat(ctx, nil, jobID)
			}
		}
	}()
	return func() { close(stop) }
}
