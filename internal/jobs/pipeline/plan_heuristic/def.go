package plan_heuristic

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
	candidates  repos.ClipCandidateRepo
	plans       repos.PlanRepo
	planner     services.HeuristicPlanner
	validator   services.EDLValidator
}

func New(
	baseLog *logger.Logger,
	media repos.MediaRepo,
	transcripts repos.TranscriptRepo,
	silences repos.SilenceMapRepo,
	candidates repos.ClipCandidateRepo,
	plans repos.PlanRepo,
	planner services.HeuristicPlanner,
	validator services.EDLValidator,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "plan_heuristic"),
		media:       media,
		transcripts: transcripts,
		silences:    silences,
		candidates:  candidates,
		plans:       plans,
		planner:     planner,
		validator:   validator,
	}
}

func (p *Pipeline) Type() string { return "plan_heuristic" }
