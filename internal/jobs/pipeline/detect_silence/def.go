package detect_silence

import (
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log      *logger.Logger
	cfg      app.Config
	media    repos.MediaRepo
	silences repos.SilenceMapRepo
	tools    services.MediaToolsService
	bucket   services.BucketService
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	silences repos.SilenceMapRepo,
	tools services.MediaToolsService,
	bucket services.BucketService,
) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", "detect_silence"),
		cfg:      cfg,
		media:    media,
		silences: silences,
		tools:    tools,
		bucket:   bucket,
	}
}

func (p *Pipeline) Type() string { return "detect_silence" }
