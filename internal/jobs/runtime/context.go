package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/clients/redis"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/types"
)

// ErrPreconditionNotMet tells the worker to push the job back onto the queue
// with a short delay instead of failing it. Handlers return it when an
// upstream artefact is not Completed yet.
var ErrPreconditionNotMet = errors.New("job preconditions not met")

// ErrCancelled tells the worker the handler observed the cancel flag and
// stopped cooperatively; the job ends cancelled, not failed.
var ErrCancelled = errors.New("job cancelled")

// Context is the execution contract between the job system and handler code.
// It wraps the claimed job_run row, the registry handle and the only
// sanctioned ways to report progress or terminate execution. Handlers never
// touch job_run directly.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Cancels redis.CancelBus
	Log     *logger.Logger
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, cancels redis.CancelBus, log *logger.Logger) *Context {
	c := &Context{
		Ctx:     ctx,
		DB:      db,
		Job:     job,
		Repo:    repo,
		Cancels: cancels,
		Log:     log,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil: an unset or unparseable payload yields an empty
// map and handlers validate required fields themselves.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (c *Context) PayloadFloat(key string) (float64, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (c *Context) PayloadBool(key string) bool {
	v, ok := c.Payload()[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Cancelled polls the shared cancel flag. Handlers call it at safe points;
// a redis error reads as not-cancelled so transient outages never abort work.
func (c *Context) Cancelled() bool {
	if c == nil || c.Cancels == nil || c.Job == nil {
		return false
	}
	flagged, err := c.Cancels.IsCancelled(c.Ctx, c.Job.ID)
	if err != nil {
		return false
	}
	return flagged
}

// Progress publishes a non-terminal update, guarded so a concurrently
// cancelled job is not overwritten.
func (c *Context) Progress(stage string, pct int) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	ok, _ := c.Repo.UpdateFieldsIfStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusRunning}, map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"heartbeat_at": now,
	})
	if !ok {
		return
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
}

// Fail marks the run terminally failed with its taxonomy code. The guard
// keeps cancelled and already-terminal rows immutable.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	code := ""
	if err != nil {
		msg = err.Error()
		code = string(apperr.CodeOf(err))
	}
	ok, _ := c.Repo.UpdateFieldsIfStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusRunning}, map[string]interface{}{
		"status":      types.JobStatusFailed,
		"stage":       stage,
		"error":       msg,
		"error_code":  code,
		"locked_at":   nil,
		"finished_at": now,
	})
	if !ok {
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.ErrorCode = code
	c.Job.FinishedAt = &now
}

// Succeed marks the run completed and stores the result payload.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	ok, _ := c.Repo.UpdateFieldsIfStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusRunning}, map[string]interface{}{
		"status":      types.JobStatusCompleted,
		"stage":       finalStage,
		"progress":    100,
		"error":       "",
		"error_code":  "",
		"result":      res,
		"locked_at":   nil,
		"finished_at": now,
	})
	if !ok {
		return
	}
	c.Job.Status = types.JobStatusCompleted
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Result = res
	c.Job.FinishedAt = &now
}

// MarkCancelled records cooperative cancellation and clears the flag.
func (c *Context) MarkCancelled(stage string) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	ok, _ := c.Repo.UpdateFieldsIfStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusRunning}, map[string]interface{}{
		"status":      types.JobStatusCancelled,
		"stage":       stage,
		"locked_at":   nil,
		"finished_at": now,
	})
	if !ok {
		return
	}
	c.Job.Status = types.JobStatusCancelled
	c.Job.FinishedAt = &now
	if c.Cancels != nil {
		_ = c.Cancels.Clear(c.Ctx, c.Job.ID)
	}
}

// Requeue pushes the claimed job back to queued with a delay, used when
// preconditions are not met. Not a failure: attempt does not change.
func (c *Context) Requeue(delay time.Duration) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	notBefore := time.Now().Add(delay)
	_, _ = c.Repo.UpdateFieldsIfStatus(c.Ctx, nil, c.Job.ID, []string{types.JobStatusRunning}, map[string]interface{}{
		"status":     types.JobStatusQueued,
		"not_before": notBefore,
		"locked_at":  nil,
	})
	c.Job.Status = types.JobStatusQueued
	c.Job.NotBefore = &notBefore
}
