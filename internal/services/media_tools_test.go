package services

import (
	"reflect"
	"testing"

	"github.com/yungbote/storycut-backend/internal/types"
)

func TestParseSilenceLog(t *testing.T) {
	log := `
[silencedetect @ 0x55] silence_start: 1.25
frame=  100 fps=0.0 q=-0.0 size=N/A
[silencedetect @ 0x55] silence_end: 3.5 | silence_duration: 2.25
[silencedetect @ 0x55] silence_start: 10
[silencedetect @ 0x55] silence_end: 12.75 | silence_duration: 2.75
`
	want := []types.SilenceInterval{
		{Start: 1.25, End: 3.5},
		{Start: 10, End: 12.75},
	}
	if got := ParseSilenceLog(log); !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseSilenceLog = %+v, want %+v", got, want)
	}
}

func TestParseSilenceLog_UnpairedLines(t *testing.T) {
	// An end with no start and a trailing unclosed start both drop.
	log := `
[silencedetect @ 0x55] silence_end: 3.5 | silence_duration: 2.25
[silencedetect @ 0x55] silence_start: 8
[silencedetect @ 0x55] silence_end: 6 | silence_duration: 0
[silencedetect @ 0x55] silence_start: 20
`
	if got := ParseSilenceLog(log); len(got) != 0 {
		t.Fatalf("expected no intervals, got %+v", got)
	}
}

func TestParseShowinfoCuts(t *testing.T) {
	log := `
[Parsed_showinfo_1 @ 0x55] n:   0 pts:  12800 pts_time:4.2     pos: 100
[Parsed_showinfo_1 @ 0x55] n:   1 pts:  25600 pts_time:9.633   pos: 200
some unrelated output pts_time:99.0
[Parsed_showinfo_1 @ 0x55] n:   2 pts:  30000 pts_time:9.633   pos: 300
[Parsed_showinfo_1 @ 0x55] n:   3 pts:  10000 pts_time:2.0     pos: 400
[Parsed_showinfo_1 @ 0x55] n:   4 pts:  90000 pts_time:31.1    pos: 500
`
	want := []float64{4.2, 9.633, 31.1}
	if got := ParseShowinfoCuts(log); !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseShowinfoCuts = %v, want %v", got, want)
	}
}

func TestParseShowinfoCuts_DropsZero(t *testing.T) {
	log := `[Parsed_showinfo_1 @ 0x55] n: 0 pts: 0 pts_time:0 pos: 0`
	if got := ParseShowinfoCuts(log); len(got) != 0 {
		t.Fatalf("t=0 is not a cut, got %v", got)
	}
}
