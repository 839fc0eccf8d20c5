package select_clips

import (
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log         *logger.Logger
	media       repos.MediaRepo
	transcripts repos.TranscriptRepo
	silences    repos.SilenceMapRepo
	cuts        repos.SceneCutsRepo
	candidates  repos.ClipCandidateRepo
	selector    services.ClipSelector
}

func New(
	baseLog *logger.Logger,
	media repos.MediaRepo,
	transcripts repos.TranscriptRepo,
	silences repos.SilenceMapRepo,
	cuts repos.SceneCutsRepo,
	candidates repos.ClipCandidateRepo,
	selector services.ClipSelector,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "select_clips"),
		media:       media,
		transcripts: transcripts,
		silences:    silences,
		cuts:        cuts,
		candidates:  candidates,
		selector:    selector,
	}
}

func (p *Pipeline) Type() string { return "select_clips" }
