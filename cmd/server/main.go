package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/config"
	"github.com/yourorg/klarna-connector/internal/eventsink/rabbitmq"
	"github.com/yourorg/klarna-connector/internal/executor"
	"github.com/yourorg/klarna-connector/internal/monitor"
	"github.com/yourorg/klarna-connector/internal/transport"
	"github.com/yourorg/klarna-connector/internal/webhook"
)

const serviceName = "klarna-connector"

// server holds the handler dependencies.
type server struct {
	executor          *executor.Executor
	trigger           *webhook.Trigger
	requestMonitor    *monitor.ContractMonitor
	defaultCredential string
	metricsEnabled    bool
}

type executeRequest struct {
	Resource       string           `json:"resource"`
	Operation      string           `json:"operation"`
	Credential     string           `json:"credential"`
	ContinueOnFail bool             `json:"continueOnFail"`
	Items          []map[string]any `json:"items"`
}

func (s *server) executeHandler(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	valid, violations, err := s.requestMonitor.Validate(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": monitor.FormatErrors(violations)})
		return
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	credential := req.Credential
	if credential == "" {
		credential = s.defaultCredential
	}
	result, err := s.executor.Execute(c.Request.Context(), executor.Batch{
		Resource:       req.Resource,
		Operation:      req.Operation,
		Credential:     credential,
		ContinueOnFail: req.ContinueOnFail,
		Items:          req.Items,
	})
	if err != nil {
		writeExecuteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeExecuteError maps a failed batch onto a status code: caller input
// errors are 400, provider failures 502.
func writeExecuteError(c *gin.Context, err error) {
	resp := gin.H{"error": err.Error()}
	var recErr *executor.RecordError
	if errors.As(err, &recErr) {
		resp["item"] = recErr.Item
	}

	var verr *apperror.ValidationError
	var aerr *apperror.APIError
	switch {
	case errors.As(err, &verr):
		if verr.Field != "" {
			resp["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &aerr):
		resp["message"] = aerr.Message
		if aerr.Description != "" {
			resp["description"] = aerr.Description
		}
		if aerr.StatusCode != 0 {
			resp["statusCode"] = aerr.StatusCode
		}
		c.JSON(http.StatusBadGateway, resp)
	default:
		log.Printf("Error executing batch: %v", err)
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func (s *server) webhookHandler(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	event, ok, err := s.trigger.Handle(c.Request.Context(), c.Request.Header, body)
	if err != nil {
		var verr *apperror.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Printf("Error handling webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, event)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func setupRouter(s *server) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.GET("/health", healthHandler)
	router.POST("/v1/execute", s.executeHandler)
	router.POST("/webhook", s.webhookHandler)
	if s.metricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return router
}

// initTracer installs a tracer provider that writes spans to stdout.
func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// loadMonitor compiles the schema at path, or the built-in schema when no
// path is configured.
func loadMonitor(path, builtin string) (*monitor.ContractMonitor, error) {
	if path == "" {
		return monitor.NewContractMonitorFromString(builtin)
	}
	log.Printf("Loading schema from %s", path)
	return monitor.NewContractMonitor(path)
}

// newServer wires the handlers from cfg. The returned cleanup closes the
// event sink, if any.
func newServer(cfg *config.Config) (*server, func(), error) {
	store, err := cfg.CredentialStore()
	if err != nil {
		return nil, nil, err
	}
	requester := transport.NewBasicAuthRequester(store, nil)

	requestMonitor, err := loadMonitor(cfg.ExecuteSchemaFile, monitor.ExecuteRequestSchema)
	if err != nil {
		return nil, nil, err
	}
	webhookMonitor, err := loadMonitor(cfg.WebhookSchemaFile, monitor.WebhookSchema)
	if err != nil {
		return nil, nil, err
	}

	filter, err := webhook.NewFilter(webhook.ParseRules(cfg.WebhookFilter))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var sink webhook.Sink
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, nil, err
		}
		sink = publisher
		cleanup = publisher.Close
	}

	trigger, err := webhook.NewTrigger(webhook.Options{
		Event:   cfg.WebhookEvent,
		Filter:  filter,
		Monitor: webhookMonitor,
		Sink:    sink,
		Notice:  cfg.Notice,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &server{
		executor:          executor.NewExecutor(requester, store, cfg.Notice),
		trigger:           trigger,
		requestMonitor:    requestMonitor,
		defaultCredential: cfg.DefaultCredential,
		metricsEnabled:    cfg.PrometheusEnabled,
	}, cleanup, nil
}

func main() {
	log.Println("Starting server...")
	cfg := config.Load()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.TracingEnabled {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("Error shutting down tracer provider: %v", err)
			}
		}()
	}

	s, cleanup, err := newServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer cleanup()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: setupRouter(s)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()
	log.Printf("Listening on :%s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
