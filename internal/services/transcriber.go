package services

import (
	"context"

	"github.com/yungbote/storycut-backend/internal/apperr"
	"github.com/yungbote/storycut-backend/internal/clients/gcp"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// Transcriber turns an extracted audio artefact into transcript segments.
// Empty audio yields empty segments, never an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioGCSURI string) ([]types.TranscriptSegment, string, error)
	Provider() string
}

type gcpTranscriber struct {
	log      *logger.Logger
	speech   gcp.Speech
	language string
}

func NewTranscriber(log *logger.Logger, speech gcp.Speech, language string) Transcriber {
	if language == "" {
		language = "en-US"
	}
	return &gcpTranscriber{
		log:      log.With("service", "Transcriber"),
		speech:   speech,
		language: language,
	}
}

func (t *gcpTranscriber) Provider() string { return "gcp_speech" }

func (t *gcpTranscriber) Transcribe(ctx context.Context, audioGCSURI string) ([]types.TranscriptSegment, string, error) {
	segments, lang, err := t.speech.TranscribeAudioGCS(ctx, audioGCSURI, t.language)
	if err != nil {
		return nil, "", apperr.New(apperr.CodeExternalModelError, err)
	}
	if segments == nil {
		segments = []types.TranscriptSegment{}
	}
	return segments, lang, nil
}
