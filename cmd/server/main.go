package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/auth"
	"github.com/Brownie44l1/leaf-api/internal/config"
	"github.com/Brownie44l1/leaf-api/internal/database"
	"github.com/Brownie44l1/leaf-api/internal/ensemble"
	"github.com/Brownie44l1/leaf-api/internal/gatekeeper"
	"github.com/Brownie44l1/leaf-api/internal/handlers"
	"github.com/Brownie44l1/leaf-api/internal/history"
	"github.com/Brownie44l1/leaf-api/internal/logger"
	"github.com/Brownie44l1/leaf-api/internal/middleware"
	"github.com/Brownie44l1/leaf-api/internal/model"
	"github.com/Brownie44l1/leaf-api/internal/pipeline"
	"github.com/Brownie44l1/leaf-api/internal/routes"
	"github.com/Brownie44l1/leaf-api/internal/storage"
	"github.com/Brownie44l1/leaf-api/internal/taxonomy"
	"github.com/Brownie44l1/leaf-api/internal/verdict"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}

	classes := taxonomy.Default()

	registry, err := model.Load(cfg.Models, classes.Len())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize model runtime")
	}
	defer registry.Close()

	classify := pipeline.New(admitter(registry, cfg.Gatekeeper), predictor(registry, classes.Len()), classes, pipeline.Options{
		ImageSize:          imageSize(registry, cfg.Models),
		Layout:             registry.DiseaseLayout,
		Thresholds:         thresholds(cfg.Verdict),
		GatekeeperFailOpen: cfg.Gatekeeper.FailOpen,
	})
	if err := classify.Ready(); err != nil {
		log.Warn().Err(err).Msg("prediction endpoint will report models unavailable")
	}

	db, err := database.Open(cfg.Database, cfg.App.Env)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	images, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	accounts := auth.NewService(auth.NewUserRepository(db), tokens)
	records := history.NewService(history.NewRepository(db), images, classes, thresholds(cfg.Verdict))

	h := handlers.NewHandler(handlers.Options{
		Classifier:    classify,
		History:       records,
		Accounts:      accounts,
		Images:        images,
		Diseases:      taxonomy.DefaultKnowledgeBase(),
		MaxUploadSize: int64(cfg.App.MaxUploadSize),
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          middleware.ErrorHandler(),
		BodyLimit:             cfg.App.MaxUploadSize + 1<<20, // room for multipart framing
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(os.Getenv("CORS_ORIGINS")))
	if cfg.Storage.Type == "local" {
		app.Static(cfg.Storage.BaseURL, cfg.Storage.BasePath)
	}

	routes.SetupRoutes(app, h, tokens)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().
		Str("port", cfg.App.Port).
		Strs("classes", classes.Names()).
		Msg("server starting")
	log.Info().Msg("endpoints: GET /health, POST /api/v1/auth/{register,login}, POST /api/v1/predict, " +
		"GET /api/v1/history[/:id], DELETE /api/v1/history/:id, GET /api/v1/dashboard, GET /api/v1/diseases[/:slug]")

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		log.Error().Err(err).Msg("server failed")
	}
}

// admitter returns nil, not a typed nil, when the gatekeeper failed to load.
func admitter(r *model.Registry, cfg config.GatekeeperConfig) pipeline.Admitter {
	if r.Gatekeeper == nil {
		return nil
	}
	meta := r.GatekeeperMetadata
	return gatekeeper.NewFilter(r.Gatekeeper, gatekeeperPolicy(cfg), meta.ImageSize, meta.Layout)
}

func predictor(r *model.Registry, classes int) pipeline.Predictor {
	if r.DiseaseErr != nil || len(r.Diseases) == 0 {
		return nil
	}
	members := make([]ensemble.Classifier, len(r.Diseases))
	for i, d := range r.Diseases {
		members[i] = d
	}
	e, err := ensemble.New(classes, members...)
	if err != nil {
		log.Error().Err(err).Msg("failed to build ensemble")
		return nil
	}
	log.Info().Strs("models", e.Models()).Msg("ensemble ready")
	return e
}

func imageSize(r *model.Registry, cfg config.ModelsConfig) int {
	if r.DiseaseImageSize > 0 {
		return r.DiseaseImageSize
	}
	return cfg.ImageSize
}

// gatekeeperPolicy overlays config on the defaults. Empty keyword lists keep
// the built-in ones.
func gatekeeperPolicy(cfg config.GatekeeperConfig) gatekeeper.Policy {
	p := gatekeeper.DefaultPolicy()
	p.MinBrightness = cfg.MinBrightness
	p.MaxBrightness = cfg.MaxBrightness
	p.OverrideAllow = cfg.OverrideAllow
	p.OverrideRatio = cfg.OverrideRatio
	p.DenyThreshold = cfg.DenyThreshold
	p.AllowThreshold = cfg.AllowThreshold
	if cfg.TopK > 0 {
		p.TopK = cfg.TopK
	}
	if len(cfg.DenylistKeywords) > 0 {
		p.Denylist = cfg.DenylistKeywords
	}
	if len(cfg.AllowlistKeywords) > 0 {
		p.Allowlist = cfg.AllowlistKeywords
	}
	return p
}

func thresholds(cfg config.VerdictConfig) verdict.Thresholds {
	return verdict.Thresholds{
		MinScore:              cfg.MinScore,
		ConflictScoreCeiling:  cfg.ConflictScoreCeiling,
		MaxConflict:           cfg.MaxConflict,
		WarningConflict:       cfg.WarningConflict,
		InaccurateScoreCutoff: cfg.InaccurateScoreCutoff,
	}
}
