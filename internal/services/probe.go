package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/logger"
)

// ProbeResult carries the technical metadata ffprobe reports for a source.
type ProbeResult struct {
	Duration    float64
	FPS         float64
	Width       int
	Height      int
	HasAudio    bool
	VideoCodec  string
	AudioCodec  string
	BitrateKbps int
	AspectRatio string
}

type ProbeService interface {
	Probe(ctx context.Context, sourceURI string) (*ProbeResult, error)
	OutputDuration(ctx context.Context, path string) (float64, error)
}

type probeService struct {
	log         *logger.Logger
	ffprobePath string
	timeout     time.Duration
}

func NewProbeService(log *logger.Logger, timeout time.Duration) ProbeService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &probeService{
		log:         log.With("service", "ProbeService"),
		ffprobePath: "ffprobe",
		timeout:     timeout,
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (p *probeService) Probe(ctx context.Context, sourceURI string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		sourceURI,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if ctx.Err() != nil {
			return nil, apperr.Newf(apperr.CodeSourceUnreachable, "probe timed out for %s", sourceURI)
		}
		if strings.Contains(msg, "Invalid data found") || strings.Contains(msg, "moov atom not found") {
			return nil, apperr.Newf(apperr.CodeUnrecognisedFormat, "probe failed: %s", msg)
		}
		return nil, apperr.Newf(apperr.CodeSourceUnreachable, "probe failed: %s", msg)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, apperr.Newf(apperr.CodeUnrecognisedFormat, "probe output unparseable: %v", err)
	}

	res := &ProbeResult{}
	res.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	if br, err := strconv.Atoi(parsed.Format.BitRate); err == nil {
		res.BitrateKbps = br / 1000
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec == "" {
				res.VideoCodec = s.CodecName
				res.Width = s.Width
				res.Height = s.Height
				res.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			res.HasAudio = true
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}

	if res.VideoCodec == "" {
		return nil, apperr.Newf(apperr.CodeUnrecognisedFormat, "no video stream in %s", sourceURI)
	}
	res.AspectRatio = aspectRatioLabel(res.Width, res.Height)
	return res, nil
}

// OutputDuration reads a rendered file's duration for the coverage check.
func (p *probeService) OutputDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w; out=%s", err, string(out))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

func parseFrameRate(r string) float64 {
	parts := strings.SplitN(strings.TrimSpace(r), "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den > 0 {
			return num / den
		}
	}
	v, _ := strconv.ParseFloat(r, 64)
	return v
}

func aspectRatioLabel(w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	g := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/g, h/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
