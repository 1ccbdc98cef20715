// Command pipeline runs the full predictive-maintenance event chain:
// telemetry ingest, eight stage workers (seven of them model-backed), the orchestrator
// that routes between them, and the HTTP surface (ingest, Twilio
// webhooks, metrics, health) that fronts all of it.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/config"
	"github.com/navigo-fleet/pipeline/pkg/ingest"
	"github.com/navigo-fleet/pipeline/pkg/llmclient"
	"github.com/navigo-fleet/pipeline/pkg/llmclient/anthropicclient"
	"github.com/navigo-fleet/pipeline/pkg/masking"
	"github.com/navigo-fleet/pipeline/pkg/metrics"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/orchestrator"
	"github.com/navigo-fleet/pipeline/pkg/servicecenter"
	"github.com/navigo-fleet/pipeline/pkg/stages/anomaly"
	"github.com/navigo-fleet/pipeline/pkg/stages/communication"
	"github.com/navigo-fleet/pipeline/pkg/stages/diagnosis"
	"github.com/navigo-fleet/pipeline/pkg/stages/engagement"
	"github.com/navigo-fleet/pipeline/pkg/stages/feedback"
	"github.com/navigo-fleet/pipeline/pkg/stages/manufacturing"
	"github.com/navigo-fleet/pipeline/pkg/stages/rca"
	"github.com/navigo-fleet/pipeline/pkg/stages/scheduling"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/telephony"
	"github.com/navigo-fleet/pipeline/pkg/telephony/webhook"
	"github.com/navigo-fleet/pipeline/pkg/vehicle"
	"github.com/navigo-fleet/pipeline/pkg/version"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", cfg.HTTPPort)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database.URL, store.Config{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL store")

	llm := newLLMClient(cfg)

	pub := bus.NewPublisher(st)
	sub := bus.NewSubscriber(st, cfg.Database.URL, bus.Config{
		PollInterval:      cfg.Bus.PollInterval,
		PollJitter:        cfg.Bus.PollJitter,
		VisibilityTimeout: cfg.Bus.VisibilityTimeout,
	})

	reaper := bus.NewReaper(st, cfg.Bus.VisibilityTimeout, 5)
	reaper.Start(ctx)
	defer reaper.Stop()

	warehouseFile, err := os.OpenFile(getEnv("WAREHOUSE_SINK_PATH", "warehouse.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("Failed to open warehouse sink: %v", err)
	}
	defer warehouseFile.Close()
	wh := warehouse.New(warehouseFile).WithMasking(masking.NewService())

	m := metrics.New()

	registry := servicecenter.NewRegistry(seedServiceCenters())
	directory := vehicle.NewDirectory(loadVehicleContacts(os.Getenv("VEHICLE_ROSTER_PATH")))
	telephonySvc := telephony.NewService(cfg.Twilio)

	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, anomaly.Descriptor(wh), models.TopicTelemetryIngested)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, diagnosis.Descriptor(wh), models.TopicAnomalyDetected)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, rca.Descriptor(wh), models.TopicDiagnosisComplete)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, scheduling.Descriptor(registry, wh), models.TopicRCAComplete)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, engagement.Descriptor(directory, wh), models.TopicSchedulingComplete)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, communication.Descriptor(telephonySvc, wh), models.TopicCommunicationTrigger)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, feedback.Descriptor(wh), models.TopicFeedbackTrigger)
	registerStage(sub, st, llm, pub, m, cfg.DuplicateWindow, manufacturing.Descriptor(wh), models.TopicFeedbackComplete)

	orch := orchestrator.New(st, pub, wh, m)
	orch.Register(sub)

	if err := sub.Start(ctx); err != nil {
		log.Fatalf("Failed to start bus subscriber: %v", err)
	}
	defer sub.Stop()
	log.Println("Bus subscriber started")

	router := gin.Default()

	ingest.NewHandler(st, pub, m).Register(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	if cfg.Twilio.Enabled() {
		webhook.NewHandler(st, llm, pub).Register(router.Group("/twilio"))
		log.Println("Twilio webhooks mounted at /twilio")
	} else {
		log.Println("Twilio not configured, /twilio webhooks disabled")
	}

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		health, err := st.Health(reqCtx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": health,
				"version":  version.Full(),
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": health,
			"version":  version.Full(),
			"stages": gin.H{
				"anomaly":       "ready",
				"diagnosis":     "ready",
				"rca":           "ready",
				"scheduling":    "ready",
				"engagement":    "ready",
				"communication": "ready",
				"feedback":      "ready",
				"manufacturing": "ready",
			},
		})
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}

// registerStage subscribes a stage worker built from desc onto topic,
// wiring the shared metrics registry into its seven-step run.
func registerStage[TIn any, TResult any](sub *bus.Subscriber, st *store.Store, llm llmclient.Client, pub *bus.Publisher, m *metrics.Registry, window time.Duration, desc stageworker.Descriptor[TIn, TResult], topic string) {
	worker := stageworker.New(desc, st, llm, pub,
		stageworker.WithMetrics[TIn, TResult](m),
		stageworker.WithDuplicateWindow[TIn, TResult](window),
	)
	sub.Subscribe(topic, worker.Handle)
}

// newLLMClient selects the model backend. A missing ANTHROPIC_API_KEY is
// fatal rather than a silent stub fallback: every stage's decision
// (diagnosis, RCA, scheduling, ...) depends on a real completion, so a
// misconfigured deployment should fail at boot, not produce fabricated
// output at the first case.
func newLLMClient(cfg config.Config) llmclient.Client {
	if cfg.AnthropicAPIKey == "" {
		log.Fatal("ANTHROPIC_API_KEY is required")
	}
	return anthropicclient.New(cfg.AnthropicAPIKey)
}

// seedServiceCenters is the fixed fleet-maintenance network this
// deployment schedules against, standing in for original_source's
// Firestore-seeded service_centers collection.
func seedServiceCenters() []servicecenter.Center {
	return []servicecenter.Center{
		{
			ID:       "sc-downtown",
			Location: "Downtown Service Center",
			TimeZone: "America/Los_Angeles",
			Capacity: 4,
			SparePartsAvailability: map[string]string{
				"brake_pads": "available",
				"battery":    "available",
				"alternator": "in_transit",
			},
		},
		{
			ID:       "sc-northside",
			Location: "Northside Service Center",
			TimeZone: "America/Los_Angeles",
			Capacity: 3,
			SparePartsAvailability: map[string]string{
				"brake_pads": "available",
				"battery":    "unavailable",
			},
		},
	}
}

// loadVehicleContacts reads the fleet owner-contact roster from the JSON
// file at VEHICLE_ROSTER_PATH (a vehicle_id -> {phone, name} map),
// standing in for original_source's Firestore-seeded "vehicles"
// collection. Engagement's communication-trigger gate checks this
// roster for a phone number, so an empty or missing roster means the
// communication/Twilio path never fires — a warning, not a fatal error,
// since fleets can run the predictive-maintenance pipeline without
// outbound calling configured.
func loadVehicleContacts(path string) map[string]vehicle.Contact {
	contacts := map[string]vehicle.Contact{}
	if path == "" {
		log.Println("VEHICLE_ROSTER_PATH not set, communication stage has no contacts to dial")
		return contacts
	}

	body, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: could not read vehicle roster at %s: %v", path, err)
		return contacts
	}
	if err := json.Unmarshal(body, &contacts); err != nil {
		log.Printf("Warning: could not parse vehicle roster at %s: %v", path, err)
		return map[string]vehicle.Contact{}
	}
	return contacts
}
