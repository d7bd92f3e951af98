package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/config"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port        uint
	httpLog     bool
	apiToken    string
	rootContext *actor.RootContext
	masterActor *actor.PID
	store       *state.Store
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewServer wires the HTTP views. store may be nil, in which case every view
// answers 503. m may be nil to disable /metrics.
func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, store *state.Store,
	m *metrics.Metrics, logger *zap.Logger) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		apiToken:    cfg.HTTP.ApiToken,
		store:       store,
		metrics:     m,
		logger:      logger,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
