package apply_plan

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
	plans       repos.PlanRepo
	renders     repos.RenderRepo
	transcripts repos.TranscriptRepo
	renderer    services.Renderer
	tools       services.MediaToolsService
	bucket      services.BucketService
	probe       services.ProbeService
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	plans repos.PlanRepo,
	renders repos.RenderRepo,
	transcripts repos.TranscriptRepo,
	renderer services.Renderer,
	tools services.MediaToolsService,
	bucket services.BucketService,
	probe services.ProbeService,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "apply_plan"),
		cfg:         cfg,
		media:       media,
		plans:       plans,
		renders:     renders,
		transcripts: transcripts,
		renderer:    renderer,
		tools:       tools,
		bucket:      bucket,
		probe:       probe,
	}
}

func (p *Pipeline) Type() string { return "apply_plan" }
