package describe_frames

import (
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log       *logger.Logger
	cfg       app.Config
	media     repos.MediaRepo
	frames    repos.FrameRepo
	tools     services.MediaToolsService
	bucket    services.BucketService
	describer services.FrameDescriber
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	frames repos.FrameRepo,
	tools services.MediaToolsService,
	bucket services.BucketService,
	describer services.FrameDescriber,
) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", "describe_frames"),
		cfg:       cfg,
		media:     media,
		frames:    frames,
		tools:     tools,
		bucket:    bucket,
		describer: describer,
	}
}

func (p *Pipeline) Type() string { return "describe_frames" }
