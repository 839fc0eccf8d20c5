package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/utils"
)

// Config enumerates every runtime option the pipeline consults. It is built
// once at startup and passed through constructors as a read-only value.
type Config struct {
	WorkerPoolSize       int     `yaml:"worker_pool_size"`
	MaxAttemptsDefault   int     `yaml:"max_attempts_default"`
	MaxAttemptsPlanStory int     `yaml:"max_attempts_plan_story"`
	RetryBackoffBaseS    float64 `yaml:"retry_backoff_base_s"`
	RetryJitterS         float64 `yaml:"retry_jitter_s"`
	StaleRunningS        float64 `yaml:"stale_running_s"`

	ProbeTimeoutS float64 `yaml:"probe_timeout_s"`
	ThumbCount    int     `yaml:"thumb_count"`

	// Soft deadlines, as multiples of the source (or keep) duration.
	TranscribeDeadlineFactor  float64 `yaml:"transcribe_deadline_factor"`
	SceneDetectDeadlineFactor float64 `yaml:"scene_detect_deadline_factor"`
	RenderDeadlineFactor      float64 `yaml:"render_deadline_factor"`

	MinSilenceS  float64 `yaml:"min_silence_s"`
	FrameSampleS float64 `yaml:"frame_sample_s"`

	ClipMinS float64 `yaml:"clip_min_s"`
	ClipMaxS float64 `yaml:"clip_max_s"`
	ClipN    int     `yaml:"clip_n"`

	CompressFrameCap   int `yaml:"compress_frame_cap"`
	CompressSceneCap   int `yaml:"compress_scene_cap"`
	CompressSegmentCap int `yaml:"compress_segment_cap"`

	PlanTemperature          float64 `yaml:"plan_temperature"`
	PlanCoverageTolerancePct float64 `yaml:"plan_coverage_tolerance_pct"`

	RenderReferenceWidth     int     `yaml:"render_reference_width"`
	RenderLoudnessTargetLUFS float64 `yaml:"render_loudness_target_lufs"`
	RenderSegmentParallelism int     `yaml:"render_segment_parallelism"`
	ModelConcurrencyLimit    int     `yaml:"model_concurrency_limit"`

	SceneDetectProvider   string `yaml:"scene_detect_provider"`   // "ffmpeg" | "gcp"
	FrameDescribeProvider string `yaml:"frame_describe_provider"` // "openai" | "gcp_vision"
}

// SoftDeadline scales a source-derived duration into a context budget. Short
// sources still get a minute so startup overhead never trips the deadline.
func SoftDeadline(factor, seconds float64) time.Duration {
	d := time.Duration(factor * seconds * float64(time.Second))
	if d < time.Minute {
		d = time.Minute
	}
	return d
}

func (c Config) RetryBackoffBase() time.Duration {
	return time.Duration(c.RetryBackoffBaseS * float64(time.Second))
}

func (c Config) RetryJitter() time.Duration {
	return time.Duration(c.RetryJitterS * float64(time.Second))
}

func (c Config) StaleRunning() time.Duration {
	return time.Duration(c.StaleRunningS * float64(time.Second))
}

// LoadConfig reads environment variables with the documented defaults, then
// applies the optional YAML overlay named by CONFIG_FILE.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		WorkerPoolSize:       utils.GetEnvAsInt("WORKER_POOL_SIZE", 4, log),
		MaxAttemptsDefault:   utils.GetEnvAsInt("MAX_ATTEMPTS_DEFAULT", 3, log),
		MaxAttemptsPlanStory: utils.GetEnvAsInt("MAX_ATTEMPTS_PLAN_STORY", 2, log),
		RetryBackoffBaseS:    utils.GetEnvAsFloat("RETRY_BACKOFF_BASE_S", 60, log),
		RetryJitterS:         utils.GetEnvAsFloat("RETRY_JITTER_S", 15, log),
		StaleRunningS:        utils.GetEnvAsFloat("STALE_RUNNING_S", 1800, log),

		ProbeTimeoutS: utils.GetEnvAsFloat("PROBE_TIMEOUT_S", 30, log),
		ThumbCount:    utils.GetEnvAsInt("THUMB_COUNT", 5, log),

		TranscribeDeadlineFactor:  utils.GetEnvAsFloat("TRANSCRIBE_DEADLINE_FACTOR", 3, log),
		SceneDetectDeadlineFactor: utils.GetEnvAsFloat("SCENE_DETECT_DEADLINE_FACTOR", 3, log),
		RenderDeadlineFactor:      utils.GetEnvAsFloat("RENDER_DEADLINE_FACTOR", 5, log),

		MinSilenceS:  utils.GetEnvAsFloat("MIN_SILENCE_S", 0.6, log),
		FrameSampleS: utils.GetEnvAsFloat("FRAME_SAMPLE_S", 1.0, log),

		ClipMinS: utils.GetEnvAsFloat("CLIP_MIN_S", 15, log),
		ClipMaxS: utils.GetEnvAsFloat("CLIP_MAX_S", 60, log),
		ClipN:    utils.GetEnvAsInt("CLIP_N", 5, log),

		CompressFrameCap:   utils.GetEnvAsInt("COMPRESS_FRAME_CAP", 50, log),
		CompressSceneCap:   utils.GetEnvAsInt("COMPRESS_SCENE_CAP", 20, log),
		CompressSegmentCap: utils.GetEnvAsInt("COMPRESS_SEGMENT_CAP", 100, log),

		PlanTemperature:          utils.GetEnvAsFloat("PLAN_TEMPERATURE", 0.3, log),
		PlanCoverageTolerancePct: utils.GetEnvAsFloat("PLAN_COVERAGE_TOLERANCE_PCT", 10, log),

		RenderReferenceWidth:     utils.GetEnvAsInt("RENDER_REFERENCE_WIDTH", 1080, log),
		RenderLoudnessTargetLUFS: utils.GetEnvAsFloat("RENDER_LOUDNESS_TARGET_LUFS", -16, log),
		RenderSegmentParallelism: utils.GetEnvAsInt("RENDER_SEGMENT_PARALLELISM", 2, log),
		ModelConcurrencyLimit:    utils.GetEnvAsInt("MODEL_CONCURRENCY_LIMIT", 4, log),

		SceneDetectProvider:   utils.GetEnv("SCENE_DETECT_PROVIDER", "ffmpeg", log),
		FrameDescribeProvider: utils.GetEnv("FRAME_DESCRIBE_PROVIDER", "openai", log),
	}

	path := utils.GetEnv("CONFIG_FILE", "", log)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", path, err)
		}
		log.Info("Applied config overlay", "path", path)
	}
	return cfg, nil
}
