package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/ucan2mqtt/internal/adapter/actor"
	"github.com/berfenger/ucan2mqtt/internal/config"
	"github.com/berfenger/ucan2mqtt/internal/core/actor"
	"github.com/berfenger/ucan2mqtt/internal/core/port"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/internal/metrics"
	"github.com/berfenger/ucan2mqtt/internal/server"
	"github.com/berfenger/ucan2mqtt/internal/util/actorutil"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	slog.Info("Using", "config", cfg.Redacted())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// restore the session token, config wins over the persisted one
	tokenStore := tokenStoreFromConfig(cfg)
	token := cfg.Cloud.Token
	if token == "" {
		token, err = tokenStore.Load()
		if err != nil {
			logger.Warn("cannot load persisted token", zap.Error(err))
		}
	}

	client, err := ucancloud.NewClient(
		ucancloud.WithBaseURL(cfg.Cloud.BaseURL),
		ucancloud.WithTimeout(cfg.Cloud.RequestTimeout()),
		ucancloud.WithToken(token),
		ucancloud.WithLogger(logger.Named("ucancloud")),
	)
	if err != nil {
		logger.Fatal("cannot create cloud client", zap.Error(err))
	}

	store := state.NewStore()
	var m *metrics.Metrics
	if cfg.Metrics.Enable {
		m = metrics.New(store, logger)
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, client, store, tokenStore, m, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Fatal("cannot spawn master actor", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid, store, m, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	shutdown(as, pid, store)
}

// shutdown stops the actor tree and discards the cache, which lives only as
// long as the process.
func shutdown(as *pactor.ActorSystem, master *pactor.PID, store *state.Store) {
	if err := as.Root.StopFuture(master).Wait(); err != nil {
		log.Printf("master did not stop in time: %v", err)
	}
	as.Shutdown()
	store.Clear()
}

func initConfig() (*config.Config, error) {

	// alias PORT => UCAN_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("UCAN_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("ucan")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func tokenStoreFromConfig(cfg *config.Config) port.TokenStore {
	if cfg.Cloud.TokenFile != "" {
		return config.NewFileTokenStore(cfg.Cloud.TokenFile)
	}
	return &config.MemoryTokenStore{}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	if !cfg.MQTT.Enabled() {
		return nil
	}
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	// keys without a default must still be known to viper for env lookup
	for _, key := range []string{"cloud.sign", "cloud.password", "cloud.token", "cloud.token_file",
		"mqtt.host", "mqtt.username", "mqtt.password", "http.api_token"} {
		viper.SetDefault(key, "")
	}
	viper.SetDefault("http_log", false)
	viper.SetDefault("cloud.base_url", ucancloud.DefaultBaseURL)
	viper.SetDefault("cloud.request_timeout_millis", ucancloud.DefaultTimeout.Milliseconds())
	viper.SetDefault("poll.interval_millis", 5000)
	viper.SetDefault("poll.sensor_interval_millis", 60000)
	viper.SetDefault("auth.retry_interval_millis", 30000)
	viper.SetDefault("auth.token_expiry_margin_millis", 300000)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "ucan")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("metrics.enable", true)
	viper.SetDefault("port", 8080)
}
