package gcp

import (
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func sec(s float64) *durationpb.Duration {
	return durationpb.New(time.Duration(s * float64(time.Second)))
}

func wordInfo(word string, start, end float64) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:      word,
		StartTime: sec(start),
		EndTime:   sec(end),
	}
}

func speechResponse(conf float32, words ...*speechpb.WordInfo) *speechpb.LongRunningRecognizeResponse {
	return &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{
					{Confidence: conf, Words: words},
				},
			},
		},
	}
}

func TestParseSpeechResponse_GroupsOnPause(t *testing.T) {
	resp := speechResponse(0.9,
		wordInfo("hello", 0, 0.4),
		wordInfo("there", 0.5, 0.9),
		// 1.1s gap forces a segment break.
		wordInfo("welcome", 2.0, 2.5),
	)
	segs := parseSpeechResponse(resp)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segs)
	}
	if segs[0].Text != "hello there" || segs[0].Start != 0 || segs[0].End != 0.9 {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Text != "welcome" || segs[1].Start != 2.0 {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
	if segs[0].Confidence == nil || *segs[0].Confidence < 0.89 || *segs[0].Confidence > 0.91 {
		t.Fatalf("confidence not carried: %+v", segs[0].Confidence)
	}
	if len(segs[0].Words) != 2 {
		t.Fatalf("word timings not retained: %+v", segs[0].Words)
	}
}

func TestParseSpeechResponse_BreaksLongSegments(t *testing.T) {
	// Continuous speech with no pause past 10s still splits.
	words := []*speechpb.WordInfo{}
	for i := 0; i < 30; i++ {
		start := float64(i) * 0.5
		words = append(words, wordInfo("w", start, start+0.4))
	}
	segs := parseSpeechResponse(speechResponse(0.8, words...))
	if len(segs) < 2 {
		t.Fatalf("expected a split past 10s, got %d segments", len(segs))
	}
	for _, s := range segs {
		if s.End-s.Start > 10.5 {
			t.Fatalf("segment [%v, %v] exceeds the cap", s.Start, s.End)
		}
	}
}

func TestParseSpeechResponse_Empty(t *testing.T) {
	if segs := parseSpeechResponse(nil); len(segs) != 0 {
		t.Fatalf("nil response: %+v", segs)
	}
	empty := &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{nil, {}},
	}
	if segs := parseSpeechResponse(empty); len(segs) != 0 {
		t.Fatalf("empty results: %+v", segs)
	}
}

func TestDurToSec(t *testing.T) {
	if got := durToSec(nil); got != 0 {
		t.Fatalf("durToSec(nil) = %v", got)
	}
	if got := durToSec(&durationpb.Duration{Seconds: 2, Nanos: 500_000_000}); got != 2.5 {
		t.Fatalf("durToSec = %v, want 2.5", got)
	}
}

func TestGrpcRetryable(t *testing.T) {
	if !grpcRetryable(status.Error(codes.Unavailable, "down")) {
		t.Fatal("Unavailable should retry")
	}
	if grpcRetryable(status.Error(codes.InvalidArgument, "bad")) {
		t.Fatal("InvalidArgument should not retry")
	}
}
