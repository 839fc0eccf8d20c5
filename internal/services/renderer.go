package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// RenderOptions parameterises one aspect-ratio render of a validated plan.
type RenderOptions struct {
	AspectRatio    string
	Captions       bool
	NormaliseAudio bool
	SourceFPS      float64
	SourceHasAudio bool
	Transcript     []types.TranscriptSegment
	WorkDir        string
	OutputPath     string
	// CancelCheck is polled between segment extractions; returning true
	// aborts the render cooperatively.
	CancelCheck func(ctx context.Context) bool
}

type RenderResult struct {
	OutputPath string
}

type RendererConfig struct {
	ReferenceWidth     int
	LoudnessTargetLUFS float64
	SegmentParallelism int
	SubtitleFontSize   int
}

// Renderer executes the keep segments of a plan against a source, producing
// one file per call. Extraction re-encodes every segment to a shared codec
// profile so concatenation is a pure stream copy; captions and loudness run
// as a single final pass.
type Renderer interface {
	Render(ctx context.Context, sourceURI string, doc types.PlanDocument, opts RenderOptions) (*RenderResult, error)
}

type renderer struct {
	log        *logger.Logger
	ffmpegPath string
	cfg        RendererConfig
}

var ErrRenderCancelled = fmt.Errorf("render cancelled")

func NewRenderer(log *logger.Logger, cfg RendererConfig) Renderer {
	if cfg.ReferenceWidth <= 0 {
		cfg.ReferenceWidth = 1080
	}
	if cfg.LoudnessTargetLUFS >= 0 {
		cfg.LoudnessTargetLUFS = -16
	}
	if cfg.SegmentParallelism <= 0 {
		cfg.SegmentParallelism = 2
	}
	if cfg.SubtitleFontSize <= 0 {
		cfg.SubtitleFontSize = 24
	}
	return &renderer{
		log:        log.With("service", "Renderer"),
		ffmpegPath: "ffmpeg",
		cfg:        cfg,
	}
}

// TargetFrame maps an "a:b" ratio onto concrete even dimensions where the
// shorter side equals the reference width.
func TargetFrame(aspect string, referenceWidth int) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(aspect), ":", 2)
	if len(parts) != 2 {
		return 0, 0, apperr.Newf(apperr.CodeInvalidRequest, "bad aspect ratio %q", aspect)
	}
	a, err1 := strconv.ParseFloat(parts[0], 64)
	b, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || a <= 0 || b <= 0 {
		return 0, 0, apperr.Newf(apperr.CodeInvalidRequest, "bad aspect ratio %q", aspect)
	}
	var w, h float64
	if a >= b {
		h = float64(referenceWidth)
		w = h * a / b
	} else {
		w = float64(referenceWidth)
		h = w * b / a
	}
	return even(w), even(h), nil
}

func even(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return n
}

// PrepareSegments takes the validated keep segments and applies render-side
// policy: merge segments touching within 10 ms, drop anything shorter than
// one frame at the output fps.
func PrepareSegments(doc types.PlanDocument, fps float64) []types.EDLSegment {
	if fps <= 0 {
		fps = 30
	}
	minLen := 1.0 / fps

	keeps := []types.EDLSegment{}
	for _, s := range doc.EDL {
		if s.Kind == types.SegmentKeep {
			keeps = append(keeps, s)
		}
	}

	merged := []types.EDLSegment{}
	for _, s := range keeps {
		if len(merged) > 0 && s.Start-merged[len(merged)-1].End <= 0.010 {
			merged[len(merged)-1].End = s.End
			continue
		}
		merged = append(merged, s)
	}

	out := []types.EDLSegment{}
	for _, s := range merged {
		if s.End-s.Start < minLen {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *renderer) Render(ctx context.Context, sourceURI string, doc types.PlanDocument, opts RenderOptions) (*RenderResult, error) {
	segments := PrepareSegments(doc, opts.SourceFPS)
	if len(segments) == 0 {
		return nil, apperr.Newf(apperr.CodeUnrenderablePlan, "no renderable keep segments")
	}

	w, h, err := TargetFrame(opts.AspectRatio, r.cfg.ReferenceWidth)
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		dir, mkErr := os.MkdirTemp("", "render-")
		if mkErr != nil {
			return nil, apperr.New(apperr.CodeOutputWriteError, mkErr)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	// Phase 1: parallel per-segment extraction, bounded by the configured
	// fan-out, results indexed so concat preserves EDL order.
	segPaths := make([]string, len(segments))
	sem := semaphore.NewWeighted(int64(r.cfg.SegmentParallelism))
	g, gctx := errgroup.WithContext(ctx)

	for i, seg := range segments {
		if opts.CancelCheck != nil && opts.CancelCheck(ctx) {
			return nil, ErrRenderCancelled
		}
		i, seg := i, seg
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if opts.CancelCheck != nil && opts.CancelCheck(gctx) {
				return ErrRenderCancelled
			}
			path := filepath.Join(workDir, fmt.Sprintf("seg_%04d.mp4", i))
			if err := r.extractSegment(gctx, sourceURI, seg, w, h, opts.SourceHasAudio, path); err != nil {
				return err
			}
			segPaths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.CancelCheck != nil && opts.CancelCheck(ctx) {
		return nil, ErrRenderCancelled
	}

	// Phase 2: serial stream-copy concatenation in EDL order.
	concatPath := filepath.Join(workDir, "concat.mp4")
	if err := r.concatSegments(ctx, segPaths, workDir, concatPath); err != nil {
		return nil, err
	}

	// Phase 3: captions and loudness in one re-encode pass when either is
	// requested; plain faststart remux otherwise.
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(workDir, "output.mp4")
	}
	if err := r.finalise(ctx, concatPath, segments, opts, outputPath); err != nil {
		return nil, err
	}

	return &RenderResult{OutputPath: outputPath}, nil
}

func (r *renderer) extractSegment(ctx context.Context, sourceURI string, seg types.EDLSegment, w, h int, hasAudio bool, outPath string) error {
	// Fit-and-pad, never crop: scale to fit inside (w, h) then pad with
	// black, keeping the whole subject visible.
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1",
		w, h, w, h,
	)

	args := []string{
		"-y",
		"-ss", formatSeconds(seg.Start),
		"-i", sourceURI,
		"-t", formatSeconds(seg.End - seg.Start),
		"-vf", vf,
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
	}
	if hasAudio {
		args = append(args, "-c:a", "aac", "-ar", "48000", "-ac", "2")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", outPath)

	run := func() error {
		tctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		cmd := exec.CommandContext(tctx, r.ffmpegPath, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return classifySegmentError(string(out), err)
		}
		return nil
	}

	err := run()
	if err != nil && apperr.CodeOf(err) == apperr.CodeEncodeError {
		// Encode failures get exactly one retry; decode failures do not.
		r.log.Warn("Segment encode failed, retrying once",
			"start", seg.Start, "end", seg.End, "error", err.Error())
		err = run()
	}
	return err
}

func classifySegmentError(output string, err error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "connection") || strings.Contains(lower, "404") ||
		strings.Contains(lower, "no such file") || strings.Contains(lower, "server returned"):
		return apperr.Newf(apperr.CodeSourceUnreachable, "segment extraction: %v; out=%s", err, truncate(output, 400))
	case strings.Contains(lower, "invalid data") || strings.Contains(lower, "error while decoding") ||
		strings.Contains(lower, "could not find codec"):
		return apperr.Newf(apperr.CodeDecodeError, "segment extraction: %v; out=%s", err, truncate(output, 400))
	default:
		return apperr.Newf(apperr.CodeEncodeError, "segment extraction: %v; out=%s", err, truncate(output, 400))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (r *renderer) concatSegments(ctx context.Context, segPaths []string, workDir, outPath string) error {
	listPath := filepath.Join(workDir, "concat.txt")
	var b strings.Builder
	for _, p := range segPaths {
		if p == "" {
			continue
		}
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return apperr.New(apperr.CodeOutputWriteError, err)
	}

	tctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(tctx, r.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return apperr.Newf(apperr.CodeEncodeError, "concat failed: %v; out=%s", err, truncate(string(out), 400))
	}
	return nil
}

func (r *renderer) finalise(ctx context.Context, inPath string, segments []types.EDLSegment, opts RenderOptions, outPath string) error {
	wantCaptions := opts.Captions && len(opts.Transcript) > 0
	wantLoudnorm := opts.NormaliseAudio && opts.SourceHasAudio

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return apperr.New(apperr.CodeOutputWriteError, err)
	}

	args := []string{"-y", "-i", inPath}

	var srtPath string
	if wantCaptions {
		srt := BuildOutputSRT(opts.Transcript, segments)
		if srt != "" {
			srtPath = filepath.Join(filepath.Dir(inPath), "captions.srt")
			if err := os.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
				return apperr.New(apperr.CodeOutputWriteError, err)
			}
			args = append(args,
				"-vf", fmt.Sprintf("subtitles=%s:force_style='FontSize=%d'", srtPath, r.cfg.SubtitleFontSize),
			)
		} else {
			wantCaptions = false
		}
	}
	if wantLoudnorm {
		args = append(args,
			"-af", fmt.Sprintf("loudnorm=I=%.0f:TP=-1.5:LRA=11", r.cfg.LoudnessTargetLUFS),
		)
	}

	if !wantCaptions && !wantLoudnorm {
		args = append(args, "-c", "copy")
	} else {
		args = append(args, "-c:v", "libx264", "-crf", "23", "-preset", "medium")
		if opts.SourceHasAudio {
			args = append(args, "-c:a", "aac")
		}
	}
	args = append(args, "-movflags", "+faststart", outPath)

	tctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(tctx, r.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return apperr.Newf(apperr.CodeEncodeError, "finalise failed: %v; out=%s", err, truncate(string(out), 400))
	}
	if _, err := os.Stat(outPath); err != nil {
		return apperr.Newf(apperr.CodeOutputWriteError, "output missing at %s", outPath)
	}
	return nil
}

// SourceToOutput maps a source timestamp into the output timeline induced by
// the keep segments. The second return is false when the timestamp falls in
// cut material.
func SourceToOutput(t float64, segments []types.EDLSegment) (float64, bool) {
	offset := 0.0
	for _, s := range segments {
		if t >= s.Start && t <= s.End {
			return offset + (t - s.Start), true
		}
		offset += s.End - s.Start
	}
	return 0, false
}

// BuildOutputSRT shifts transcript segments onto the output timeline and
// renders them as SRT. Segments that fall entirely in cut material are
// omitted; partial overlaps are clipped to the keep window.
func BuildOutputSRT(transcript []types.TranscriptSegment, segments []types.EDLSegment) string {
	var b strings.Builder
	n := 0
	for _, ts := range transcript {
		text := strings.TrimSpace(ts.Text)
		if text == "" {
			continue
		}
		for _, seg := range segments {
			lo := math.Max(ts.Start, seg.Start)
			hi := math.Min(ts.End, seg.End)
			if hi-lo < 0.05 {
				continue
			}
			outStart, ok1 := SourceToOutput(lo, segments)
			outEnd, ok2 := SourceToOutput(hi, segments)
			if !ok1 || !ok2 || outEnd <= outStart {
				continue
			}
			n++
			fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, srtTimestamp(outStart), srtTimestamp(outEnd), text)
		}
	}
	return b.String()
}

func srtTimestamp(t float64) string {
	if t < 0 {
		t = 0
	}
	ms := int64(math.Round(t * 1000))
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	rem := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, rem)
}
