package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// CompressedContext is the bounded projection of enrichment data that fits a
// prompt budget.
type CompressedContext struct {
	Duration       float64
	Frames         []*types.Frame
	Scenes         []*types.Scene
	Segments       []types.TranscriptSegment
	ContextSummary string
}

type CompressorConfig struct {
	FrameCap   int
	SceneCap   int
	SegmentCap int
}

// Compressor projects thousands of frames, hundreds of scenes and segments
// down to fixed ceilings. First and last entries are always retained to
// preserve framing. Pure.
type Compressor interface {
	Compress(duration float64, frames []*types.Frame, scenes []*types.Scene, segments []types.TranscriptSegment, keyMomentHints []float64) CompressedContext
}

type compressor struct {
	log *logger.Logger
	cfg CompressorConfig
}

func NewCompressor(log *logger.Logger, cfg CompressorConfig) Compressor {
	if cfg.FrameCap <= 0 {
		cfg.FrameCap = 50
	}
	if cfg.SceneCap <= 0 {
		cfg.SceneCap = 20
	}
	if cfg.SegmentCap <= 0 {
		cfg.SegmentCap = 100
	}
	return &compressor{log: log.With("service", "Compressor"), cfg: cfg}
}

func (c *compressor) Compress(duration float64, frames []*types.Frame, scenes []*types.Scene, segments []types.TranscriptSegment, keyMomentHints []float64) CompressedContext {
	out := CompressedContext{
		Duration: duration,
		Frames:   compressFrames(frames, c.cfg.FrameCap, keyMomentHints),
		Scenes:   compressScenes(scenes, c.cfg.SceneCap),
		Segments: compressSegments(segments, c.cfg.SegmentCap),
	}
	out.ContextSummary = fmt.Sprintf(
		"source duration %.1fs; %d/%d frames, %d/%d scenes, %d/%d transcript segments sampled",
		duration,
		len(out.Frames), len(frames),
		len(out.Scenes), len(scenes),
		len(out.Segments), len(segments),
	)
	return out
}

// compressFrames keeps a uniform subsample plus any frame within 250 ms of a
// key moment hint. First and last frames always survive. Ties broken by
// description length, longer retained.
func compressFrames(frames []*types.Frame, limit int, hints []float64) []*types.Frame {
	if len(frames) <= limit {
		return frames
	}

	keep := map[int]bool{0: true, len(frames) - 1: true}

	for _, h := range hints {
		best := -1
		for i, f := range frames {
			if math.Abs(f.T-h) > 0.25 {
				continue
			}
			if best < 0 || len(f.Description) > len(frames[best].Description) {
				best = i
			}
		}
		if best >= 0 {
			keep[best] = true
		}
	}

	remaining := limit - len(keep)
	if remaining > 0 {
		stride := float64(len(frames)-1) / float64(remaining+1)
		for k := 1; k <= remaining; k++ {
			idx := int(math.Round(stride * float64(k)))
			if idx < 0 {
				idx = 0
			}
			if idx >= len(frames) {
				idx = len(frames) - 1
			}
			keep[idx] = true
		}
	}

	idxs := make([]int, 0, len(keep))
	for i := range keep {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	if len(idxs) > limit {
		// Hint frames can push past the ceiling; trim from the middle, never
		// the endpoints.
		for len(idxs) > limit {
			idxs = append(idxs[:len(idxs)/2], idxs[len(idxs)/2+1:]...)
		}
	}

	out := make([]*types.Frame, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, frames[i])
	}
	return out
}

func compressScenes(scenes []*types.Scene, limit int) []*types.Scene {
	if len(scenes) <= limit {
		return scenes
	}
	keep := map[int]bool{0: true, len(scenes) - 1: true}
	stride := float64(len(scenes)-1) / float64(limit-1)
	for k := 1; k < limit-1; k++ {
		keep[int(math.Round(stride*float64(k)))] = true
	}
	idxs := make([]int, 0, len(keep))
	for i := range keep {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]*types.Scene, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, scenes[i])
	}
	return out
}

// compressSegments prefers the densest speech but always keeps the first and
// last segment.
func compressSegments(segments []types.TranscriptSegment, limit int) []types.TranscriptSegment {
	if len(segments) <= limit {
		return segments
	}

	type ranked struct {
		idx     int
		density float64
	}
	rankings := make([]ranked, 0, len(segments))
	for i, seg := range segments {
		length := seg.End - seg.Start
		if length <= 0 {
			length = 0.001
		}
		rankings = append(rankings, ranked{
			idx:     i,
			density: float64(len(strings.Fields(seg.Text))) / length,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].density > rankings[j].density })

	keep := map[int]bool{0: true, len(segments) - 1: true}
	for _, r := range rankings {
		if len(keep) >= limit {
			break
		}
		keep[r.idx] = true
	}

	idxs := make([]int, 0, len(keep))
	for i := range keep {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]types.TranscriptSegment, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, segments[i])
	}
	return out
}
