package transcribe

import (
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log         *logger.Logger
	cfg         app.Config
	media       repos.MediaRepo
	transcripts repos.TranscriptRepo
	tools       services.MediaToolsService
	bucket      services.BucketService
	transcriber services.Transcriber
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	transcripts repos.TranscriptRepo,
	tools services.MediaToolsService,
	bucket services.BucketService,
	transcriber services.Transcriber,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "transcribe"),
		cfg:         cfg,
		media:       media,
		transcripts: transcripts,
		tools:       tools,
		bucket:      bucket,
		transcriber: transcriber,
	}
}

func (p *Pipeline) Type() string { return "transcribe" }
