package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reactWs/internal/config"
	handler "reactWs/internal/modules/reactive/application/handler"
	usecase "reactWs/internal/modules/reactive/application/usecase"
	"reactWs/internal/modules/reactive/infrastructure"
	transport "reactWs/internal/modules/reactive/interface"
	"reactWs/internal/platform/broker"
	"reactWs/internal/shared/auth"
	"reactWs/internal/shared/logging"
)

func main() {
	// Attempt to load variables from .env so local runs honour configuration tweaks.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := setupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("directory", cfg.Logging.Directory), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))

	if err := run(cfg, logger); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *infrastructure.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := infrastructure.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metrics = m
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	handlers := infrastructure.NewHandlerRegistry()
	topics := infrastructure.NewTopicRegistry(metrics.ObservePublish)
	defer topics.Close()

	bootUC := usecase.NewBootUseCase(handlers, topics)
	if err := bootUC.Execute(
		&handler.EchoHandler{},
		&handler.PingHandler{},
		&handler.ChatHandler{},
	); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	publishUC := usecase.NewPublishUseCase(topics)

	// External ingress: every configured source forwards into its runtime topic
	ingress := infrastructure.NewIngressRegistry()
	kafkaTopics := make([]string, 0, len(cfg.Kafka.Bindings))
	for source, topic := range cfg.Kafka.Bindings {
		if err := ingress.Register(handler.NewTopicIngressHandler(broker.KindKafka, source, topic, publishUC, metrics.IngressRecord)); err != nil {
			return err
		}
		kafkaTopics = append(kafkaTopics, source)
	}
	slog.Info("kafka config resolved", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("group", cfg.Kafka.GroupID), slog.Any("bindings", cfg.Kafka.Bindings))
	broker.StartKafkaConsumers(ctx, ingress, cfg.Kafka.Brokers, cfg.Kafka.GroupID, kafkaTopics)

	if len(cfg.AMQP.Bindings) > 0 {
		conn, err := broker.DialAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.DialAttempts, cfg.AMQP.DialWait)
		if err != nil {
			return err
		}
		defer conn.Close()
		queues := make([]string, 0, len(cfg.AMQP.Bindings))
		for queue, topic := range cfg.AMQP.Bindings {
			if err := ingress.Register(handler.NewTopicIngressHandler(broker.KindAMQP, queue, topic, publishUC, metrics.IngressRecord)); err != nil {
				return err
			}
			queues = append(queues, queue)
		}
		broker.StartAMQPConsumers(ctx, ingress, conn, queues)
	}
	slog.Info("ingress sources registered", slog.Any("sources", ingress.Sources()))

	var validator auth.TokenValidator
	if cfg.Security.JWTSecret != "" || cfg.Security.JWTPublicKey != "" {
		v, err := auth.NewJWTValidatorWithPublicKey(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
		if err != nil {
			return err
		}
		validator = v
	}

	dispatcher := infrastructure.NewDispatcher(handlers, topics, infrastructure.DispatcherConfig{
		SendBuffer:   cfg.Server.SendBuffer,
		PingInterval: cfg.Server.PingInterval,
	}, metrics, logging.ForComponent(logger, "dispatcher"))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	transport.Register(e, transport.Routes{
		Dispatcher: dispatcher,
		Handlers:   handlers,
		PublishUC:  publishUC,
		Websocket: transport.WebsocketOptions{
			Transport: infrastructure.WebsocketConfig{
				ReadLimit:       cfg.Server.ReadLimit,
				ReadIdleTimeout: cfg.Server.ReadIdleTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
			},
			Validator:    validator,
			RequireToken: cfg.Security.RequireToken,
			BaseContext:  ctx,
		},
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func setupLogging(cfg config.LoggingConfig) (*os.File, *slog.Logger, error) {
	dir := cfg.Directory
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	fileName := filepath.Join(dir, time.Now().UTC().Format("2006-01-02")+".log")
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	writer := io.MultiWriter(os.Stdout, file)
	logger := logging.New(writer, logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: true,
	})
	log.SetOutput(writer)
	log.SetFlags(0)
	log.SetPrefix("")

	return file, logger, nil
}
