package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/storycut-backend/internal/app"
	"github.com/yungbote/storycut-backend/internal/clients/gcp"
	"github.com/yungbote/storycut-backend/internal/clients/openai"
	"github.com/yungbote/storycut-backend/internal/clients/redis"
	"github.com/yungbote/storycut-backend/internal/db"
	"github.com/yungbote/storycut-backend/internal/handlers"
	"github.com/yungbote/storycut-backend/internal/jobs"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/apply_plan"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/describe_frames"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/detect_scenes"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/detect_silence"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/index_scenes"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/plan_heuristic"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/plan_story"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/probe"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/select_clips"
	"github.com/yungbote/storycut-backend/internal/jobs/pipeline/transcribe"
	"github.com/yungbote/storycut-backend/internal/jobs/runtime"
	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/repos"
	"github.com/yungbote/storycut-backend/internal/server"
	"github.com/yungbote/storycut-backend/internal/services"
	"github.com/yungbote/storycut-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	// Registry database
	database, err := db.NewDatabaseService(log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := database.AutoMigrateAll(); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}
	theDB := database.DB()

	// Repos
	log.Info("Setting up repos...")
	mediaRepo := repos.NewMediaRepo(theDB, log)
	jobRunRepo := repos.NewJobRunRepo(theDB, log)
	transcriptRepo := repos.NewTranscriptRepo(theDB, log)
	silenceRepo := repos.NewSilenceMapRepo(theDB, log)
	sceneCutsRepo := repos.NewSceneCutsRepo(theDB, log)
	frameRepo := repos.NewFrameRepo(theDB, log)
	sceneRepo := repos.NewSceneRepo(theDB, log)
	clipRepo := repos.NewClipCandidateRepo(theDB, log)
	planRepo := repos.NewPlanRepo(theDB, log)
	renderRepo := repos.NewRenderRepo(theDB, log)

	// Clients
	log.Info("Setting up clients...")
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	speechClient, err := gcp.NewSpeech(log)
	if err != nil {
		log.Fatal("Speech client init failed", "error", err)
	}
	defer speechClient.Close()
	var videoIntel gcp.VideoIntel
	if cfg.SceneDetectProvider == "gcp" {
		videoIntel, err = gcp.NewVideoIntel(log)
		if err != nil {
			log.Fatal("Video Intelligence client init failed", "error", err)
		}
		defer videoIntel.Close()
	}
	cancelBus, err := redis.NewCancelBus(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer cancelBus.Close()

	// Services
	log.Info("Setting up services...")
	bucket, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Bucket init failed", "error", err)
	}
	probeSvc := services.NewProbeService(log, time.Duration(cfg.ProbeTimeoutS*float64(time.Second)))
	tools := services.NewMediaToolsService(log)
	if err := tools.AssertReady(context.Background()); err != nil {
		log.Fatal("Media tools unavailable", "error", err)
	}
	transcriber := services.NewTranscriber(log, speechClient, utils.GetEnv("TRANSCRIBE_LANGUAGE", "en-US", log))
	var describer services.FrameDescriber
	if cfg.FrameDescribeProvider == "gcp_vision" {
		visionClient, err := gcp.NewVision(log)
		if err != nil {
			log.Fatal("Vision client init failed", "error", err)
		}
		defer visionClient.Close()
		describer = services.NewVisionFrameDescriber(log, visionClient)
	} else {
		describer = services.NewOpenAIFrameDescriber(log, aiClient)
	}
	indexer := services.NewSceneIndexer(log)
	selector := services.NewClipSelector(log, services.ClipSelectorConfig{
		MinSeconds: cfg.ClipMinS,
		MaxSeconds: cfg.ClipMaxS,
		MaxClips:   cfg.ClipN,
	})
	compressor := services.NewCompressor(log, services.CompressorConfig{
		FrameCap:   cfg.CompressFrameCap,
		SceneCap:   cfg.CompressSceneCap,
		SegmentCap: cfg.CompressSegmentCap,
	})
	validator := services.NewEDLValidator(log, services.ValidatorConfig{
		CoverageTolerancePct: cfg.PlanCoverageTolerancePct,
		StrictCoverage:       utils.GetEnvAsBool("PLAN_STRICT_COVERAGE", false, log),
	})
	prompts := services.NewPromptBuilder(log)
	storyPlanner := services.NewStoryPlanner(log, aiClient, prompts, services.StoryPlannerConfig{
		Temperature: cfg.PlanTemperature,
	})
	heuristicPlanner := services.NewHeuristicPlanner(log)
	renderer := services.NewRenderer(log, services.RendererConfig{
		ReferenceWidth:     cfg.RenderReferenceWidth,
		LoudnessTargetLUFS: cfg.RenderLoudnessTargetLUFS,
		SegmentParallelism: cfg.RenderSegmentParallelism,
	})
	enqueuer := services.NewEnqueuer(log, jobRunRepo, services.EnqueuerConfig{
		MaxAttemptsDefault:   cfg.MaxAttemptsDefault,
		MaxAttemptsPlanStory: cfg.MaxAttemptsPlanStory,
	})

	// Job pipelines
	log.Info("Registering job pipelines...")
	registry := runtime.NewRegistry()
	mustRegister := func(h runtime.Handler) {
		if err := registry.Register(h); err != nil {
			log.Fatal("Pipeline registration failed", "error", err)
		}
	}
	mustRegister(probe.New(log, cfg, mediaRepo, probeSvc, tools, bucket))
	mustRegister(transcribe.New(log, cfg, mediaRepo, transcriptRepo, tools, bucket, transcriber))
	mustRegister(detect_silence.New(log, cfg, mediaRepo, silenceRepo, tools, bucket))
	mustRegister(detect_scenes.New(log, cfg, mediaRepo, sceneCutsRepo, tools, videoIntel))
	mustRegister(describe_frames.New(log, cfg, mediaRepo, frameRepo, tools, bucket, describer))
	mustRegister(index_scenes.New(log, mediaRepo, sceneCutsRepo, frameRepo, sceneRepo, indexer))
	mustRegister(select_clips.New(log, mediaRepo, transcriptRepo, silenceRepo, sceneCutsRepo, clipRepo, selector))
	mustRegister(plan_heuristic.New(log, mediaRepo, transcriptRepo, silenceRepo, clipRepo, planRepo, heuristicPlanner, validator))
	mustRegister(plan_story.New(log, cfg, mediaRepo, transcriptRepo, frameRepo, sceneRepo, planRepo, compressor, storyPlanner, validator))
	mustRegister(apply_plan.New(log, cfg, mediaRepo, planRepo, renderRepo, transcriptRepo, renderer, tools, bucket, probeSvc))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := jobs.NewWorker(log, cfg, theDB, jobRunRepo, registry, cancelBus)
	worker.Start(ctx)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		MediaHandler:  handlers.NewMediaHandler(log, mediaRepo, jobRunRepo, transcriptRepo, sceneRepo, clipRepo, enqueuer, bucket),
		PlanHandler:   handlers.NewPlanHandler(log, mediaRepo, planRepo, renderRepo, enqueuer),
		RenderHandler: handlers.NewRenderHandler(renderRepo),
		JobHandler:    handlers.NewJobHandler(log, jobRunRepo, cancelBus),
	})

	port := utils.GetEnv("PORT", "8080", log)
	go func() {
		if err := router.Run(":" + port); err != nil {
			log.Fatal("HTTP server stopped", "error", err)
		}
	}()
	log.Info("Server started", "port", port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down...")
	cancel()
	worker.Stop()
}
