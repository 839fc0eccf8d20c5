package probe

import (
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log    *logger.Logger
	cfg    app.Config
	media  repos.MediaRepo
	probe  services.ProbeService
	tools  services.MediaToolsService
	bucket services.BucketService
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	probe services.ProbeService,
	tools services.MediaToolsService,
	bucket services.BucketService,
) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", "probe"),
		cfg:    cfg,
		media:  media,
		probe:  probe,
		tools:  tools,
		bucket: bucket,
	}
}

func (p *Pipeline) Type() string { return "probe" }
