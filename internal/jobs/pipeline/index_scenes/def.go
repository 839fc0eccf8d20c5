package index_scenes

import (
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/services"
)

type Pipeline struct {
	log     *logger.Logger
	media   repos.MediaRepo
	cuts    repos.SceneCutsRepo
	frames  repos.FrameRepo
	scenes  repos.SceneRepo
	indexer services.SceneIndexer
}

func New(
	baseLog *logger.Logger,
	media repos.MediaRepo,
	cuts repos.SceneCutsRepo,
	frames repos.FrameRepo,
	scenes repos.SceneRepo,
	indexer services.SceneIndexer,
) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", "index_scenes"),
		media:   media,
		cuts:    cuts,
		frames:  frames,
		scenes:  scenes,
		indexer: indexer,
	}
}

func (p *Pipeline) Type() string { return "index_scenes" }
