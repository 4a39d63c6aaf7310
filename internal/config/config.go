package config

import (
	"os"
	"time"
)

type Config struct {
	Postgres  PostgresConfig
	OpenAI    OpenAIConfig
	Embedding EmbeddingConfig
	Agent     AgentConfig
	Kube      KubeConfig
	Timeouts  Timeouts
}

// OpenAIConfig carries the OPENAI_API_KEY env var name used for the LLM
// credential even though the underlying client is google.golang.org/genai;
// OPENAI_API_KEY/OPENAI_MODEL trace back to the original Python agent's
// literal openai.OpenAI client.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

type EmbeddingConfig struct {
	APIKey string
}

// AgentConfig controls the runbook execution engine's operating mode.
type AgentConfig struct {
	Mode        string // "auto" or "recommend"
	ClusterName string
	LogLevel    string
}

type KubeConfig struct {
	Kubeconfig string // empty => in-cluster config
}

type Timeouts struct {
	DB      time.Duration
	Cluster time.Duration
	LLM     time.Duration
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

func Load() Config {
	return Config{
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getenv("OPENAI_MODEL", "gemini-2.0-flash"),
		},
		Embedding: EmbeddingConfig{
			APIKey: getenv("AI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		},
		Agent: AgentConfig{
			Mode:        getenv("AGENT_MODE", "recommend"),
			ClusterName: getenv("CLUSTER_NAME", "unknown"),
			LogLevel:    getenv("LOG_LEVEL", "INFO"),
		},
		Kube: KubeConfig{
			Kubeconfig: os.Getenv("KUBECONFIG"),
		},
		Timeouts: Timeouts{
			DB:      5 * time.Second,
			Cluster: 15 * time.Second,
			LLM:     60 * time.Second,
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
