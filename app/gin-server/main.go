package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/config"
	"github.com/yoockh/voicechain/internal/api/handlers"
	"github.com/yoockh/voicechain/internal/api/middleware"
	"github.com/yoockh/voicechain/internal/api/routes"
	"github.com/yoockh/voicechain/internal/cache"
	"github.com/yoockh/voicechain/internal/logger"
	"github.com/yoockh/voicechain/internal/metrics"
	"github.com/yoockh/voicechain/internal/modules"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/avatar"
	"github.com/yoockh/voicechain/internal/providers/llm"
	"github.com/yoockh/voicechain/internal/providers/stt"
	"github.com/yoockh/voicechain/internal/providers/tts"
	"github.com/yoockh/voicechain/internal/queue"
	mongorepo "github.com/yoockh/voicechain/internal/repositories/mongo"
	pgrepo "github.com/yoockh/voicechain/internal/repositories/postgres"
	"github.com/yoockh/voicechain/internal/services"
	"github.com/yoockh/voicechain/internal/storage"
	"github.com/yoockh/voicechain/internal/voices"
	"github.com/yoockh/voicechain/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.NewWith(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, mt := metrics.NewRegistry()

	// Synthesis and voice cache: Redis when configured, in-process otherwise.
	var c cache.Cache
	if cfg.RedisAddr == "" {
		mem := cache.NewMemory(cache.WithMaxEntries(cfg.MemoryCacheMaxEntries))
		mem.Start(ctx, cfg.MemoryCacheSweep)
		c = mem
	} else {
		if err := config.InitRedis(cfg.RedisAddr); err != nil {
			log.WithError(err).Fatal("redis init")
		}
		c = cache.NewRedisCache(config.RedisClient, "voicechain:")
		log.Info("redis connected")
	}

	var runLogs mongorepo.RunLogRepository
	if cfg.MongoURI != "" {
		if err := config.InitMongo(cfg.MongoURI); err != nil {
			log.WithError(err).Fatal("mongo init")
		}
		db, err := config.MongoDatabase(cfg.MongoDB)
		if err != nil {
			log.WithError(err).Fatal("mongo database")
		}
		if err := config.EnsureMongoIndexes(db); err != nil {
			log.WithError(err).Warn("mongo indexes")
		}
		runLogs = mongorepo.NewRunLogRepo(db, cfg.RunLogTTL)
		log.Info("mongo connected")
	}

	pf, err := config.LoadPipelineFile(cfg.PipelineFile)
	if err != nil {
		log.WithError(err).Fatal("pipeline file")
	}

	catalog, defaultVoice, err := buildCatalog(ctx, cfg, pf, c, log)
	if err != nil {
		log.WithError(err).Fatal("voice catalog")
	}

	deps, closers, err := buildDeps(ctx, cfg, pf, catalog, defaultVoice, c, log)
	if err != nil {
		log.WithError(err).Fatal("providers")
	}
	defer func() {
		for _, fn := range closers {
			_ = fn()
		}
	}()

	mods, err := modules.Build(pf.Modules, deps)
	if err != nil {
		log.WithError(err).Fatal("modules")
	}

	mgr := queue.NewManager(
		queue.WithSweepInterval(cfg.QueueSweepInterval),
		queue.WithMaxIdle(cfg.QueueMaxIdle),
		queue.WithLogger(log),
		queue.WithMetrics(mt),
	)
	mgr.Start(ctx)

	p, err := pipeline.New(mgr, mods, pipeline.WithLogger(log), pipeline.WithMetrics(mt))
	if err != nil {
		log.WithError(err).Fatal("pipeline")
	}
	for _, st := range p.Describe() {
		log.WithFields(logrus.Fields{
			"index":  st.Index,
			"module": st.Name,
			"input":  st.Input,
			"output": st.Output,
			"next":   st.Next,
		}).Info("stage linked")
	}

	go func() {
		for _, st := range p.Heartbeat(ctx) {
			if !st.OK {
				log.WithFields(logrus.Fields{"module": st.Module, "error": st.Error}).Warn("stage cold at startup")
			}
		}
	}()

	if cfg.HeartbeatInterval > 0 {
		hb := &workers.HeartbeatWorker{Pipeline: p, Interval: cfg.HeartbeatInterval, Logger: log}
		if err := hb.Start(ctx); err != nil {
			log.WithError(err).Fatal("heartbeat worker")
		}
	}

	assets, err := buildAssets(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("assets")
	}

	system, err := handlers.NewSystemHandler(p)
	if err != nil {
		log.WithError(err).Fatal("schema")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Stream:  handlers.NewStreamHandler(services.NewStreamService(p, runLogs, log, cfg.QueuePollTimeout), log),
		Awake:   handlers.NewAwakeHandler(services.NewAwakeService(catalog, assets, defaultVoice)),
		System:  system,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.WithField("port", cfg.Port).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
}

func buildCatalog(ctx context.Context, cfg config.Config, pf config.PipelineFile, c cache.Cache, log *logrus.Logger) (voices.Catalog, string, error) {
	var (
		static       *voices.Static
		defaultVoice string
		err          error
	)
	if pf.VoicesFile != "" {
		static, defaultVoice, err = voices.LoadFile(pf.VoicesFile)
		if err != nil {
			return nil, "", err
		}
	} else {
		static = voices.NewStatic()
	}
	defaultVoice = firstNonEmpty(cfg.TTSDefaultVoice, pf.DefaultVoice, defaultVoice)

	if cfg.VoiceBackend != "postgres" {
		return static, defaultVoice, nil
	}

	if err := config.InitPostgres(cfg.PostgresURI); err != nil {
		return nil, "", err
	}
	repo := pgrepo.NewVoiceRepo(config.PostgresDB)
	if vs, _ := static.List(ctx); len(vs) > 0 {
		if err := voices.Seed(ctx, repo, vs); err != nil {
			return nil, "", err
		}
		log.WithField("voices", len(vs)).Info("voice catalog seeded")
	}
	return voices.NewCached(voices.NewPostgres(repo), c, cfg.VoiceCacheTTL), defaultVoice, nil
}

func buildDeps(ctx context.Context, cfg config.Config, pf config.PipelineFile, catalog voices.Catalog, defaultVoice string, c cache.Cache, log *logrus.Logger) (modules.Deps, []func() error, error) {
	var closers []func() error
	d := modules.Deps{
		Voices:     catalog,
		Cache:      c,
		TTSOptions: modules.TTSOptions{DefaultVoice: defaultVoice, CacheTTL: cfg.TTSCacheTTL},
		Log:        log,
	}

	switch cfg.LLMProvider {
	case "dify":
		d.LLM = llm.NewDify(cfg.DifyBaseURL, cfg.DifyAPIKey, cfg.DifyTimeout)
	case "openai":
		d.LLM = llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.LLMSystemPrompt)
	case "vertex":
		g, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel, cfg.LLMSystemPrompt)
		if err != nil {
			return d, closers, err
		}
		d.LLM = g
	case "mock":
		d.LLM = &llm.Echo{Delay: 20 * time.Millisecond}
	}
	closers = append(closers, d.LLM.Close)

	if cfg.TTSEndpoint != "" {
		d.TTS = tts.NewGPTSovits(cfg.TTSEndpoint, cfg.TTSTimeout)
	}
	if cfg.AvatarURL != "" {
		d.Avatar = avatar.NewLiveTalking(cfg.AvatarURL, cfg.AvatarTimeout)
	}
	if cfg.STTEnabled || contains(pf.Modules, modules.NameASR) {
		rec, err := stt.NewGoogleSpeech(ctx, cfg.STTLanguage, int32(cfg.STTSampleRate))
		if err != nil {
			return d, closers, err
		}
		d.STT = rec
		closers = append(closers, rec.Close)
	}
	return d, closers, nil
}

func buildAssets(ctx context.Context, cfg config.Config) (storage.AssetStore, error) {
	if cfg.AssetsBucket != "" {
		return storage.NewGCSAssets(ctx, cfg.AssetsBucket, cfg.AssetsPrefix)
	}
	return storage.NewLocalAssets(cfg.AssetsDir), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
