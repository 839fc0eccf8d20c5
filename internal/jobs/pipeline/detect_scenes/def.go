package detect_scenes

import (
	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/clients/gcp"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log        *logger.Logger
	cfg        app.Config
	media      repos.MediaRepo
	cuts       repos.SceneCutsRepo
	tools      services.MediaToolsService
	videoIntel gcp.VideoIntel
}

// New wires the scene-cut detector. videoIntel may be nil; the pipeline then
// always uses the local ffmpeg detector regardless of configuration.
func New(
	baseLog *logger.Logger,
	cfg app.Config,
	media repos.MediaRepo,
	cuts repos.SceneCutsRepo,
	tools services.MediaToolsService,
	videoIntel gcp.VideoIntel,
) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", "detect_scenes"),
		cfg:        cfg,
		media:      media,
		cuts:       cuts,
		tools:      tools,
		videoIntel: videoIntel,
	}
}

func (p *Pipeline) Type() string { return "detect_scenes" }
