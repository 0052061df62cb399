package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chrissnell/tempoaqi/internal/controllers/restserver"
	"github.com/chrissnell/tempoaqi/internal/earthdata"
	"github.com/chrissnell/tempoaqi/internal/grid"
	"github.com/chrissnell/tempoaqi/internal/log"
	"github.com/chrissnell/tempoaqi/internal/metrics"
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/internal/types"
	"github.com/chrissnell/tempoaqi/pkg/aqi"
	"github.com/chrissnell/tempoaqi/pkg/config"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Components are the wired parts of a running service.
type Components struct {
	Repository *earthdata.Repository
	Service    *query.Service
	Metrics    *metrics.Metrics
}

// Build wires the Earthdata client, the extractors and the calculator into
// a query service.
func (a *App) Build() (*Components, error) {
	cfg := a.config
	ed := cfg.Earthdata

	if !ed.Primary.Valid() && !ed.Backup.Valid() {
		a.logger.Warnf("no Earthdata credentials configured; set %s and %s", config.EnvUsername, config.EnvPassword)
	}

	client := &http.Client{Timeout: ed.TimeoutDuration()}
	limiter := rate.NewLimiter(rate.Limit(ed.RequestsPerSecond), ed.Burst)

	auth := earthdata.NewAuthenticator(ed.URSEndpoint, credentials(ed.Primary), credentials(ed.Backup), client, a.logger)
	cmr := earthdata.NewCMRClient(ed.CMREndpoint, client, limiter, a.logger)
	repo := earthdata.NewRepository(auth, cmr, client, limiter, ed.DownloadDir, a.logger)

	products, err := Products(cfg.Products, a.logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := query.NewService(repo, products, aqi.NewCalculator(cfg.Index.Params()), query.Options{
		Window:        ed.Window,
		BoxHalfSize:   ed.BoundingBoxDegrees,
		Concurrency:   cfg.Query.Concurrency,
		DefaultPoints: cfg.Server.DefaultPoints,
		DefaultRadius: cfg.Server.DefaultRadiusMeters,
		MaxPoints:     cfg.Server.MaxPoints,
	}, m, a.logger)

	return &Components{Repository: repo, Service: svc, Metrics: m}, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := a.Build()
	if err != nil {
		return err
	}

	ctrl, err := restserver.NewController(ctx, &wg, a.config.Server, c.Service, c.Metrics, a.logger)
	if err != nil {
		return fmt.Errorf("error creating REST server: %w", err)
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// Products converts product configuration into query products.
func Products(cfg []config.ProductData, logger *zap.SugaredLogger) ([]query.Product, error) {
	out := make([]query.Product, 0, len(cfg))
	for _, p := range cfg {
		pollutant := types.Pollutant(p.Pollutant)
		if !pollutant.Valid() {
			return nil, fmt.Errorf("product %s: unknown pollutant %q", p.ShortName, p.Pollutant)
		}
		out = append(out, query.Product{
			Pollutant: pollutant,
			ShortName: p.ShortName,
			Version:   p.Version,
			Scale:     p.Scale,
			Extractor: grid.NewExtractor(VariableNames(p.Variables), logger),
		})
	}
	return out, nil
}

// VariableNames maps configured variable names onto the extractor's.
func VariableNames(v config.VariablesData) grid.VariableNames {
	return grid.VariableNames{
		Group:        v.Group,
		Latitude:     v.Latitude,
		Longitude:    v.Longitude,
		Troposphere:  v.Troposphere,
		Uncertainty:  v.Uncertainty,
		Stratosphere: v.Stratosphere,
		QualityFlag:  v.QualityFlag,
	}.WithDefaults()
}

func credentials(c *config.CredentialData) *earthdata.Credentials {
	if !c.Valid() {
		return nil
	}
	return &earthdata.Credentials{Username: c.Username, Password: c.Password}
}
