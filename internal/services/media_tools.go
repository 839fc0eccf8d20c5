package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// MediaToolsService is the glue around the ffmpeg/ffprobe binaries for
// enrichment-side extraction. Synchronous and deterministic; call from worker
// jobs, not request handlers.
//
// REQUIRED BINARIES in worker runtime: ffmpeg, ffprobe.
type MediaToolsService interface {
	AssertReady(ctx context.Context) error

	ExtractAudio(ctx context.Context, sourceURI string, outPath string) (string, error)
	DetectSilence(ctx context.Context, audioPath string, minSilence float64, noiseDB float64) ([]types.SilenceInterval, error)
	DetectSceneCuts(ctx context.Context, sourceURI string, threshold float64) ([]float64, error)
	SampleFrames(ctx context.Context, sourceURI string, outDir string, intervalSeconds float64, width int) ([]SampledFrame, error)
	ExtractThumbnails(ctx context.Context, sourceURI string, outDir string, duration float64, count int, width int) ([]string, error)

	WorkDir(jobID string) (string, func(), error)
}

// SampledFrame is one extracted frame image plus its source timestamp.
type SampledFrame struct {
	Path string
	T    float64
}

type mediaToolsService struct {
	log            *logger.Logger
	ffmpegPath     string
	workRoot       string
	defaultTimeout time.Duration
}

func NewMediaToolsService(log *logger.Logger) MediaToolsService {
	return &mediaToolsService{
		log:            log.With("service", "MediaToolsService"),
		ffmpegPath:     "ffmpeg",
		workRoot:       "/tmp/storycut-media",
		defaultTimeout: 30 * time.Minute,
	}
}

// withDefaultTimeout caps an unbounded context with the service default.
// A caller-supplied deadline, such as a job's soft deadline, is left alone.
func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (m *mediaToolsService) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *mediaToolsService) WorkDir(jobID string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	dir, err := os.MkdirTemp(m.workRoot, "job-"+jobID+"-")
	if err != nil {
		return "", func() {}, fmt.Errorf("mkdir temp: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	return dir, cleanup, nil
}

// ExtractAudio writes a mono 16 kHz pcm_s16le wav, the shape transcription
// and silence detection both expect.
func (m *mediaToolsService) ExtractAudio(ctx context.Context, sourceURI string, outPath string) (string, error) {
	if sourceURI == "" {
		return "", fmt.Errorf("sourceURI required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	ctx, cancel := withDefaultTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", sourceURI,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([0-9.]+)`)
)

// DetectSilence runs the silencedetect filter and parses its stderr log.
// Intervals come back sorted and disjoint by construction; an unclosed
// trailing silence_start is ignored because the filter reports silence_end at
// EOF for real inputs.
func (m *mediaToolsService) DetectSilence(ctx context.Context, audioPath string, minSilence float64, noiseDB float64) ([]types.SilenceInterval, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("audioPath required")
	}
	if minSilence <= 0 {
		minSilence = 0.6
	}
	if noiseDB >= 0 {
		noiseDB = -40
	}

	ctx, cancel := withDefaultTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%.0fdB:d=%g", noiseDB, minSilence),
		"-f", "null",
		"-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect failed: %w; out=%s", err, string(out))
	}
	return ParseSilenceLog(string(out)), nil
}

// ParseSilenceLog pairs silence_start/silence_end lines from ffmpeg output.
func ParseSilenceLog(log string) []types.SilenceInterval {
	intervals := []types.SilenceInterval{}
	var start *float64
	for _, line := range strings.Split(log, "\n") {
		if mm := silenceStartRe.FindStringSubmatch(line); mm != nil {
			if v, err := strconv.ParseFloat(mm[1], 64); err == nil {
				start = &v
			}
			continue
		}
		if mm := silenceEndRe.FindStringSubmatch(line); mm != nil && start != nil {
			if v, err := strconv.ParseFloat(mm[1], 64); err == nil && v > *start {
				intervals = append(intervals, types.SilenceInterval{Start: *start, End: v})
			}
			start = nil
		}
	}
	return intervals
}

var showinfoPtsRe = regexp.MustCompile(`pts_time:([0-9.]+)`)

// DetectSceneCuts selects frames past the scene-change threshold and reads
// their timestamps out of showinfo's log.
func (m *mediaToolsService) DetectSceneCuts(ctx context.Context, sourceURI string, threshold float64) ([]float64, error) {
	if sourceURI == "" {
		return nil, fmt.Errorf("sourceURI required")
	}
	if threshold <= 0 {
		threshold = 0.35
	}

	ctx, cancel := withDefaultTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", sourceURI,
		"-vf", fmt.Sprintf("select='gt(scene\\,%0.3f)',showinfo", threshold),
		"-f", "null",
		"-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg scene detect failed: %w; out=%s", err, string(out))
	}
	return ParseShowinfoCuts(string(out)), nil
}

// ParseShowinfoCuts extracts strictly increasing pts_time values.
func ParseShowinfoCuts(log string) []float64 {
	cuts := []float64{}
	for _, line := range strings.Split(log, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		mm := showinfoPtsRe.FindStringSubmatch(line)
		if mm == nil {
			continue
		}
		v, err := strconv.ParseFloat(mm[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		if len(cuts) > 0 && v <= cuts[len(cuts)-1] {
			continue
		}
		cuts = append(cuts, v)
	}
	return cuts
}

func (m *mediaToolsService) SampleFrames(ctx context.Context, sourceURI string, outDir string, intervalSeconds float64, width int) ([]SampledFrame, error) {
	if sourceURI == "" {
		return nil, fmt.Errorf("sourceURI required")
	}
	if outDir == "" {
		return nil, fmt.Errorf("outDir required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outDir: %w", err)
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 1.0
	}

	ctx, cancel := withDefaultTimeout(ctx, m.defaultTimeout)
	defer cancel()

	vf := fmt.Sprintf("fps=%0.6f", 1.0/intervalSeconds)
	if width > 0 {
		vf = fmt.Sprintf("%s,scale=%d:-1", vf, width)
	}

	outPattern := filepath.Join(outDir, "frame_%06d.jpg")
	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", sourceURI,
		"-vf", vf,
		"-q:v", "3",
		outPattern,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame sampling failed: %w; out=%s", err, string(out))
	}

	paths, err := globSorted(outDir, `^frame_\d+\.jpg$`)
	if err != nil {
		return nil, err
	}
	frames := make([]SampledFrame, 0, len(paths))
	for i, p := range paths {
		frames = append(frames, SampledFrame{
			Path: p,
			T:    float64(i) * intervalSeconds,
		})
	}
	return frames, nil
}

// ExtractThumbnails grabs count evenly spaced stills across the duration.
func (m *mediaToolsService) ExtractThumbnails(ctx context.Context, sourceURI string, outDir string, duration float64, count int, width int) ([]string, error) {
	if sourceURI == "" {
		return nil, fmt.Errorf("sourceURI required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outDir: %w", err)
	}
	if count <= 0 {
		count = 5
	}
	if width <= 0 {
		width = 480
	}
	if duration <= 0 {
		return []string{}, nil
	}

	paths := []string{}
	for i := 0; i < count; i++ {
		t := duration * (float64(i) + 0.5) / float64(count)
		outPath := filepath.Join(outDir, fmt.Sprintf("thumb_%03d.jpg", i))

		tctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		cmd := exec.CommandContext(tctx, m.ffmpegPath,
			"-y",
			"-ss", formatSeconds(t),
			"-i", sourceURI,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=%d:-1", width),
			"-q:v", "3",
			outPath,
		)
		out, err := cmd.CombinedOutput()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg thumbnail failed at %0.2fs: %w; out=%s", t, err, string(out))
		}
		paths = append(paths, outPath)
	}
	return paths, nil
}

func formatSeconds(t float64) string {
	return strconv.FormatFloat(t, 'f', 3, 64)
}

func globSorted(dir string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if re.MatchString(strings.ToLower(e.Name())) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
