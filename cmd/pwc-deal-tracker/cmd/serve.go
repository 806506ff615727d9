package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebmorten/pwc-deal-tracker/internal/api"
	"github.com/calebmorten/pwc-deal-tracker/internal/catalog"
	"github.com/calebmorten/pwc-deal-tracker/internal/config"
	"github.com/calebmorten/pwc-deal-tracker/internal/dedupe"
	"github.com/calebmorten/pwc-deal-tracker/internal/engine"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
	"github.com/calebmorten/pwc-deal-tracker/pkg/valuation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(ctx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	if closer, ok := st.(interface{ Close() }); ok {
		defer closer.Close()
	}

	eng, err := buildEngine(cfg, st, log)
	if err != nil {
		return err
	}

	sched, err := engine.NewScheduler(eng, cfg.Schedule.TrendRefreshInterval, log)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	e := api.NewRouter(api.Deps{Store: st, Engine: eng, Logger: log})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	default:
		st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("connected to database", "host", cfg.Database.Host)
		return st, nil
	}
}

func buildEngine(cfg *config.Config, st store.Store, log *slog.Logger) (*engine.Engine, error) {
	curve := valuation.DefaultCurve()
	if len(cfg.Valuation.Curve) > 0 {
		points := make([]valuation.CurvePoint, 0, len(cfg.Valuation.Curve))
		for _, p := range cfg.Valuation.Curve {
			points = append(points, valuation.CurvePoint{AgeYears: p.AgeYears, Factor: p.Factor})
		}
		c, ok := valuation.NewCurve(points, cfg.Valuation.Floor)
		if !ok {
			return nil, errors.New("valuation.curve is not a valid depreciation curve")
		}
		curve = c
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	dedup := dedupe.New(st, dedupe.Config{
		TitleSimilarity:     cfg.Dedup.TitleSimilarity,
		PriceTolerance:      cfg.Dedup.PriceTolerance,
		PriceConflictWindow: cfg.Dedup.PriceConflictWindow,
	}, log)

	eng := engine.NewEngine(st, dedup, cat,
		engine.WithLogger(log),
		engine.WithCurve(curve),
		engine.WithClassifierConfig(valuation.ClassifierConfig{
			OutlierIQRMultiplier: cfg.Valuation.OutlierIQRMultiplier,
		}),
		engine.WithAnalyzeWorkers(cfg.Valuation.AnalyzeWorkers),
	)

	return eng, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path != "" {
		cat, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		return cat, nil
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("loading embedded catalog: %w", err)
	}
	return cat, nil
}
