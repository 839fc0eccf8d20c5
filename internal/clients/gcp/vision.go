package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/storycut-backend/internal/logger"
)

// Vision is the managed alternative to model-based frame description,
// selected with FRAME_DESCRIBE_PROVIDER=gcp_vision. It composes a short
// description from label annotations instead of calling a generative model.
type Vision interface {
	DescribeImageBytes(ctx context.Context, img []byte) (string, float64, error)
	Close() error
}

type visionService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	c, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{
		log:    log.With("service", "gcp.Vision"),
		client: c,
	}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionService) DescribeImageBytes(ctx context.Context, img []byte) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if len(img) == 0 {
		return "", 0, nil
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 8},
					{Type: visionpb.Feature_TEXT_DETECTION, MaxResults: 1},
				},
			},
		},
	}

	resp, err := s.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", 0, nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", 0, fmt.Errorf("vision annotate: %s", r.Error.Message)
	}

	labels := []string{}
	var confSum float64
	for _, l := range r.LabelAnnotations {
		if l == nil || strings.TrimSpace(l.Description) == "" {
			continue
		}
		labels = append(labels, l.Description)
		confSum += float64(l.Score)
	}

	desc := strings.Join(labels, ", ")
	if len(r.TextAnnotations) > 0 && r.TextAnnotations[0] != nil {
		txt := strings.Join(strings.Fields(r.TextAnnotations[0].Description), " ")
		if txt != "" {
			if len(txt) > 120 {
				txt = txt[:120]
			}
			desc = fmt.Sprintf("%s; on-screen text: %s", desc, txt)
		}
	}

	conf := 0.0
	if len(labels) > 0 {
		conf = confSum / float64(len(labels))
	}
	return desc, conf, nil
}
