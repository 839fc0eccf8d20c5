package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/clients/gcp"
	"github.com/yungbote/storycut-backend/internal/clients/openai"
	"github.com/yungbote/storycut-backend/internal/logger"
)

// FrameDescriber produces a short textual description for one sampled frame.
// FRAME_DESCRIBE_PROVIDER selects the generative model (openai, default) or
// Cloud Vision labels (gcp_vision).
type FrameDescriber interface {
	Describe(ctx context.Context, imagePath string) (string, float64, error)
	Provider() string
}

const frameDescribeSystem = "You describe a single video frame in one short sentence. " +
	"Mention the main subject, the setting and any visible action. No preamble."

type openaiFrameDescriber struct {
	log    *logger.Logger
	client openai.Client
}

func NewOpenAIFrameDescriber(log *logger.Logger, client openai.Client) FrameDescriber {
	return &openaiFrameDescriber{
		log:    log.With("service", "FrameDescriber"),
		client: client,
	}
}

func (d *openaiFrameDescriber) Provider() string { return "openai" }

func (d *openaiFrameDescriber) Describe(ctx context.Context, imagePath string) (string, float64, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", 0, fmt.Errorf("read frame %s: %w", imagePath, err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)
	text, err := d.client.GenerateTextWithImages(ctx, frameDescribeSystem,
		"Describe this frame.",
		[]openai.ImageInput{{ImageURL: dataURL, Detail: "low"}},
	)
	if err != nil {
		return "", 0, apperr.New(apperr.CodeExternalModelError, err)
	}
	return text, 0, nil
}

type visionFrameDescriber struct {
	log    *logger.Logger
	vision gcp.Vision
}

func NewVisionFrameDescriber(log *logger.Logger, vision gcp.Vision) FrameDescriber {
	return &visionFrameDescriber{
		log:    log.With("service", "FrameDescriber"),
		vision: vision,
	}
}

func (d *visionFrameDescriber) Provider() string { return "gcp_vision" }

func (d *visionFrameDescriber) Describe(ctx context.Context, imagePath string) (string, float64, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", 0, fmt.Errorf("read frame %s: %w", imagePath, err)
	}
	desc, conf, err := d.vision.DescribeImageBytes(ctx, raw)
	if err != nil {
		return "", 0, apperr.New(apperr.CodeExternalModelError, err)
	}
	return desc, conf, nil
}
