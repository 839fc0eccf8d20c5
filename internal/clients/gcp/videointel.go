package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/yungbote/storycut-backend/internal/logger"
)

// VideoIntel is the managed alternative to ffmpeg scene detection, selected
// with SCENE_DETECT_PROVIDER=gcp. It only works on gs:// sources.
type VideoIntel interface {
	DetectShotChanges(ctx context.Context, gcsURI string) ([]float64, error)
	Close() error
}

type videoIntelService struct {
	log    *logger.Logger
	client *videointelligence.Client
}

func NewVideoIntel(log *logger.Logger) (VideoIntel, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	c, err := videointelligence.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &videoIntelService{
		log:    log.With("service", "gcp.VideoIntel"),
		client: c,
	}, nil
}

func (s *videoIntelService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// DetectShotChanges returns the start timestamps of every shot after the
// first, which is exactly the cut list the scene indexer expects.
func (s *videoIntelService) DetectShotChanges(ctx context.Context, gcsURI string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	op, err := s.client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []videointelligencepb.Feature{
			videointelligencepb.Feature_SHOT_CHANGE_DETECTION,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate video: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("annotate video wait: %w", err)
	}

	cuts := []float64{}
	for _, ar := range resp.AnnotationResults {
		for i, shot := range ar.ShotAnnotations {
			if i == 0 || shot == nil || shot.StartTimeOffset == nil {
				continue
			}
			t := float64(shot.StartTimeOffset.Seconds) + float64(shot.StartTimeOffset.Nanos)/1e9
			if t > 0 {
				cuts = append(cuts, t)
			}
		}
	}
	return cuts, nil
}
