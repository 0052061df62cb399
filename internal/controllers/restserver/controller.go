// Package restserver serves the composite index query API over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/tempoaqi/internal/log"
	"github.com/chrissnell/tempoaqi/internal/metrics"
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/pkg/config"
)

// Querier answers composite index queries. *query.Service implements it.
type Querier interface {
	Query(ctx context.Context, req query.Request) (*query.Response, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	querier      Querier
	metrics      *metrics.Metrics
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, querier Querier, m *metrics.Metrics, logger *zap.SugaredLogger) (*Controller, error) {
	if querier == nil {
		return nil, fmt.Errorf("REST server needs a query service")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = config.DefaultListenAddr
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		sc.Port = config.DefaultPort
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		querier:      querier,
		metrics:      m,
		logger:       logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the complete HTTP handler: routes wrapped in CORS and
// request logging
func (c *Controller) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(c.serverConfig.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept", "Authorization", log.RequestIDHeader}),
		handlers.ExposedHeaders([]string{log.RequestIDHeader}),
	)
	return log.HTTPMiddleware(cors(c.setupRouter()))
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	// The frontend posts to "/" when deployed and to "/api/tempo" in development.
	router.HandleFunc("/", c.handlers.QueryTempo).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/tempo", c.handlers.QueryTempo).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)
	if c.metrics != nil {
		router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)
	}

	return router
}
