package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
)

// Speech transcribes extracted audio via Cloud Speech-to-Text. Input is
// always the mono 16 kHz LINEAR16 wav the audio extractor produces.
type Speech interface {
	TranscribeAudioGCS(ctx context.Context, gcsURI string, languageCode string) ([]types.TranscriptSegment, string, error)
	Close() error
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	c, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &speechService{
		log:        log.With("service", "gcp.Speech"),
		client:     c,
		maxRetries: 4,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeAudioGCS(ctx context.Context, gcsURI string, languageCode string) ([]types.TranscriptSegment, string, error) {
	// Callers with a soft deadline keep it; only unbounded contexts get capped.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
	}

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, "", fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode,
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return parseSpeechResponse(resp), languageCode, nil
}

// parseSpeechResponse groups word timings into segments, breaking on pauses
// longer than 0.8s or when a segment passes 10s.
func parseSpeechResponse(resp *speechpb.LongRunningRecognizeResponse) []types.TranscriptSegment {
	out := []types.TranscriptSegment{}
	if resp == nil {
		return out
	}

	words := []types.TranscriptWord{}
	confByWord := []float64{}
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			words = append(words, types.TranscriptWord{
				Word:        w.Word,
				Start:       durToSec(w.StartTime),
				End:         durToSec(w.EndTime),
				Probability: float64(w.Confidence),
			})
			confByWord = append(confByWord, float64(alt.Confidence))
		}
	}
	if len(words) == 0 {
		return out
	}

	const (
		maxGap     = 0.8
		maxSegment = 10.0
	)

	segStart := 0
	for i := 1; i <= len(words); i++ {
		atEnd := i == len(words)
		breakHere := atEnd
		if !atEnd {
			gap := words[i].Start - words[i-1].End
			breakHere = gap > maxGap || words[i].End-words[segStart].Start > maxSegment
		}
		if !breakHere {
			continue
		}
		chunk := words[segStart:i]
		texts := make([]string, len(chunk))
		var confSum float64
		for j, w := range chunk {
			texts[j] = w.Word
			confSum += confByWord[segStart+j]
		}
		conf := confSum / float64(len(chunk))
		out = append(out, types.TranscriptSegment{
			Start:      chunk[0].Start,
			End:        chunk[len(chunk)-1].End,
			Text:       strings.Join(texts, " "),
			Confidence: &conf,
			Words:      chunk,
		})
		segStart = i
	}
	return out
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (s *speechService) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !grpcRetryable(err) || attempt == s.maxRetries {
			return nil, err
		}
		s.log.Warn("Speech request retrying",
			"attempt", attempt+1,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, lastErr
}

func grpcRetryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return true
	default:
		return false
	}
}
