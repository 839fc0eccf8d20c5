package plan_story

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
	frames      repos.FrameRepo
	scenes      repos.SceneRepo
	plans       repos.PlanRepo
	compressor  services.Compressor
	planner     services.StoryPlanner
	validator   services.EDLValidator
}

func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	transcripts repos.TranscriptRepo,
	frames repos.FrameRepo,
	scenes repos.SceneRepo,
	plans repos.PlanRepo,
	compressor services.Compressor,
	planner services.StoryPlanner,
	validator services.EDLValidator,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "plan_story"),
		cfg:         cfg,
		media:       media,
		transcripts: transcripts,
		frames:      frames,
		scenes:      scenes,
		plans:       plans,
		compressor:  compressor,
		planner:     planner,
		validator:   validator,
	}
}

func (p *Pipeline) Type() string { return "plan_story" }
