package services

import (
	"sort"
	"strings"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// IndexedScene is one derived scene interval before persistence.
type IndexedScene struct {
	Index       int
	Start       float64
	End         float64
	Description string
}

// SceneIndexer turns cut timestamps into adjacent [start, end) intervals
// covering the whole timeline, each described by the frames inside it. Pure.
type SceneIndexer interface {
	Index(duration float64, cuts []float64, frames []*types.Frame) []IndexedScene
}

type sceneIndexer struct {
	log *logger.Logger
}

func NewSceneIndexer(log *logger.Logger) SceneIndexer {
	return &sceneIndexer{log: log.With("service", "SceneIndexer")}
}

func (s *sceneIndexer) Index(duration float64, cuts []float64, frames []*types.Frame) []IndexedScene {
	if duration <= 0 {
		return []IndexedScene{}
	}

	// Sanitise cuts to strictly increasing values inside (0, duration).
	clean := []float64{}
	for _, c := range cuts {
		if c <= 0 || c >= duration {
			continue
		}
		clean = append(clean, c)
	}
	sort.Float64s(clean)
	bounds := []float64{0}
	for _, c := range clean {
		if c > bounds[len(bounds)-1] {
			bounds = append(bounds, c)
		}
	}
	bounds = append(bounds, duration)

	scenes := make([]IndexedScene, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		sc := IndexedScene{
			Index: i,
			Start: bounds[i],
			End:   bounds[i+1],
		}
		sc.Description = describeInterval(sc.Start, sc.End, frames)
		scenes = append(scenes, sc)
	}
	return scenes
}

// describeInterval joins up to three distinct frame descriptions from the
// interval, preferring the longer ones.
func describeInterval(start, end float64, frames []*types.Frame) string {
	inside := []string{}
	for _, f := range frames {
		if f == nil || f.T < start || f.T >= end {
			continue
		}
		d := strings.TrimSpace(f.Description)
		if d != "" {
			inside = append(inside, d)
		}
	}
	if len(inside) == 0 {
		return ""
	}
	sort.SliceStable(inside, func(i, j int) bool { return len(inside[i]) > len(inside[j]) })

	picked := []string{}
	seen := map[string]bool{}
	for _, d := range inside {
		if seen[d] {
			continue
		}
		seen[d] = true
		picked = append(picked, d)
		if len(picked) == 3 {
			break
		}
	}
	return strings.Join(picked, " | ")
}
