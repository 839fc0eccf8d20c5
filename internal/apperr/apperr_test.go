package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(Newf(CodeEmptySource, "no duration")); got != CodeEmptySource {
		t.Fatalf("CodeOf = %q, want %q", got, CodeEmptySource)
	}
	wrapped := fmt.Errorf("render segment 2: %w", New(CodeEncodeError, errors.New("exit status 1")))
	if got := CodeOf(wrapped); got != CodeEncodeError {
		t.Fatalf("CodeOf wrapped = %q, want %q", got, CodeEncodeError)
	}
	if got := CodeOf(errors.New("plain")); got != "InternalError" {
		t.Fatalf("CodeOf plain = %q, want InternalError", got)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{CodeSourceUnreachable, false},
		{CodeUnrecognisedFormat, false},
		{CodeInvalidRequest, false},
		{CodeEmptySource, false},
		{CodeInsufficientSignal, false},
		{CodeDecodeError, false},
		{CodeOutputWriteError, false},
		{CodeNotFound, false},
		// Planner misses get another attempt before the cap settles them.
		{CodeUnrenderablePlan, true},
		{CodeExternalModelError, true},
		{CodeBlobStoreUnavailable, true},
		{CodeEncodeError, true},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			if got := Retryable(Newf(tc.code, "boom")); got != tc.want {
				t.Fatalf("Retryable(%s) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
	if !Retryable(errors.New("unclassified")) {
		t.Fatal("unclassified errors should be retryable")
	}
}
