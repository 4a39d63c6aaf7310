package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kube-rca/backend/internal/client"
	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/config"
	"github.com/kube-rca/backend/internal/db"
	"github.com/kube-rca/backend/internal/engine"
	"github.com/kube-rca/backend/internal/handler"
	"github.com/kube-rca/backend/internal/llm"
	"github.com/kube-rca/backend/internal/model"
	"github.com/kube-rca/backend/internal/runbook"
	"github.com/kube-rca/backend/internal/service"
	"github.com/kube-rca/backend/internal/tools"
)

func main() {
	cfg := config.Load()
	config.SetLevel(config.ParseLevel(cfg.Agent.LogLevel))
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	store := &db.Postgres{Pool: pool, Timeout: cfg.Timeouts.DB}
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	if err := store.EnsureEmbeddingSchema(ctx); err != nil {
		log.Fatalf("ensure embedding schema: %v", err)
	}

	registry := tools.NewRegistry()

	runbooks, err := runbook.Load(getenv("RUNBOOKS_DIR", "runbooks"), registry)
	if err != nil {
		log.Fatalf("load runbooks: %v", err)
	}
	config.Infof("loaded %d runbooks", len(runbooks))

	clusterClient, err := cluster.NewClient(cfg.Kube.Kubeconfig, cfg.Timeouts.Cluster)
	if err != nil {
		log.Fatalf("cluster client: %v", err)
	}

	var adjudicator *llm.Adjudicator
	var composer *llm.Composer
	if cfg.OpenAI.APIKey != "" {
		genaiClient, err := client.NewGenAIClientWithTimeout(cfg.OpenAI, cfg.Timeouts.LLM)
		if err != nil {
			log.Fatalf("genai client: %v", err)
		}
		adjudicator = llm.NewAdjudicator(genaiClient)
		composer = llm.NewComposer(genaiClient)
	} else {
		config.Infof("OPENAI_API_KEY not set: adjudicator will fall back to direct tool invocation for every step")
		adjudicator = llm.NewAdjudicator(nil)
		composer = llm.NewComposer(nil)
	}

	router := engine.NewRouter(runbooks)
	workflowEngine := engine.NewEngine(registry, adjudicator)
	mode := model.Mode(cfg.Agent.Mode)
	dedup := engine.NewDedup(store, router, workflowEngine, composer, runbooks, clusterClient, mode, cfg.Agent.ClusterName)

	embeddingService, err := buildEmbeddingService(cfg, store)
	if err != nil {
		config.Warnf("embedding service disabled: %v", err)
	}

	rcaService := service.NewRcaService(store, dedup)
	rcaHandler := handler.NewRcaHandler(rcaService)
	alertHandler := handler.NewAlertmanagerHandler(dedup)

	ginRouter := gin.Default()
	ginRouter.Use(handler.CORSMiddleware(allowedOrigins(), true))

	ginRouter.GET("/", handler.Root)
	ginRouter.GET("/ping", handler.Ping)
	ginRouter.POST("/alertmanager", alertHandler.Webhook)
	ginRouter.GET("/healthz", rcaHandler.Healthz)

	api := ginRouter.Group("/api")
	api.GET("/incidents", rcaHandler.GetIncidents)
	api.GET("/incidents/:id", rcaHandler.GetIncidentDetail)
	api.PUT("/incidents/:id", rcaHandler.UpdateIncident)
	api.PATCH("/incidents/:id", rcaHandler.HideIncident)
	api.POST("/incidents/:id/resolve", rcaHandler.ResolveIncident)
	api.POST("/incidents/:id/regenerate-analysis", rcaHandler.RegenerateAnalysis)
	api.POST("/incidents/mock", rcaHandler.CreateMockIncident)

	if embeddingService != nil {
		api.POST("/v1/embeddings", handler.NewEmbeddingHandler(embeddingService).CreateEmbedding)
	}

	addr := ":" + getenv("PORT", "8080")
	config.Infof("listening on %s (mode=%s cluster=%s)", addr, mode, cfg.Agent.ClusterName)
	if err := ginRouter.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func buildEmbeddingService(cfg config.Config, store *db.Postgres) (*service.EmbeddingService, error) {
	if cfg.Embedding.APIKey == "" {
		return nil, nil
	}
	embedClient, err := client.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return service.NewEmbeddingService(store, embedClient), nil
}

func allowedOrigins() []string {
	raw := getenv("CORS_ALLOWED_ORIGINS", "")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
