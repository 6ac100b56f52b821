package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
)

// Ошибки конфигурации.
var (
	// ErrInvalidConfig — невалидное значение переменной окружения.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackend — неизвестный STORE_BACKEND.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Значения по умолчанию.
const (
	DefaultAPIPort  = "8080"
	DefaultVariant  = engine.VariantIP
	DefaultBackend  = repo.BackendMemory
	DefaultRPSBurst = 1
)

// Config — конфигурация relay-api и relay-cli из переменных окружения.
type Config struct {
	APIPort string

	// Workflow
	WorkflowVariant string
	WorkflowFile    string
	UpstreamURL     string
	WorkflowTimeout time.Duration

	// Record Store
	StoreBackend   string
	StoreTable     string
	DBURL          string
	DynamoEndpoint string
	AWSRegion      string

	// История выполнений
	RabbitMQURL string

	// Входящий rate limit (RPS <= 0 — выключен)
	RateLimitRPS   float64
	RateLimitBurst int

	// Cron trigger (пусто — выключен)
	ScheduleCron     string
	ScheduleTimezone string
}

// FromEnv читает конфигурацию из окружения процесса.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Load читает конфигурацию через getenv.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIPort:          valueOr(getenv("API_PORT"), DefaultAPIPort),
		WorkflowVariant:  valueOr(getenv("WORKFLOW_VARIANT"), DefaultVariant),
		WorkflowFile:     getenv("WORKFLOW_FILE"),
		UpstreamURL:      getenv("UPSTREAM_URL"),
		StoreBackend:     strings.ToLower(valueOr(getenv("STORE_BACKEND"), DefaultBackend)),
		StoreTable:       getenv("STORE_TABLE"),
		DBURL:            getenv("DB_URL"),
		DynamoEndpoint:   getenv("DYNAMODB_ENDPOINT"),
		AWSRegion:        getenv("AWS_REGION"),
		RabbitMQURL:      getenv("RABBITMQ_URL"),
		RateLimitBurst:   DefaultRPSBurst,
		ScheduleCron:     getenv("SCHEDULE_CRON"),
		ScheduleTimezone: getenv("SCHEDULE_TIMEZONE"),
	}

	if v := getenv("WORKFLOW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: WORKFLOW_TIMEOUT=%q", ErrInvalidConfig, v)
		}
		cfg.WorkflowTimeout = d
	}

	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: RATE_LIMIT_RPS=%q", ErrInvalidConfig, v)
		}
		cfg.RateLimitRPS = rps
	}

	if v := getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			return nil, fmt.Errorf("%w: RATE_LIMIT_BURST=%q", ErrInvalidConfig, v)
		}
		cfg.RateLimitBurst = burst
	}

	switch cfg.StoreBackend {
	case repo.BackendMemory, repo.BackendDynamoDB, repo.BackendPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}

	return cfg, nil
}

// Addr возвращает адрес для http.Server.
func (c *Config) Addr() string {
	return ":" + c.APIPort
}

// LoadDefinition загружает Definition (файл или встроенный вариант)
// и применяет переопределения из окружения.
func (c *Config) LoadDefinition() (*domain.Definition, error) {
	var (
		def *domain.Definition
		err error
	)
	if c.WorkflowFile != "" {
		def, err = engine.LoadDefinition(c.WorkflowFile)
	} else {
		def, err = engine.Variant(c.WorkflowVariant)
	}
	if err != nil {
		return nil, err
	}

	c.applyOverrides(def)

	if err := engine.Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (c *Config) applyOverrides(def *domain.Definition) {
	if c.WorkflowTimeout > 0 {
		def.TimeoutSec = int(math.Ceil(c.WorkflowTimeout.Seconds()))
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if c.UpstreamURL != "" && step.Fetch != nil {
			step.Fetch.URL = c.UpstreamURL
		}
		if c.StoreTable != "" && step.Persist != nil {
			step.Persist.Table = c.StoreTable
		}
	}
}

// OpenStore создаёт Record Store выбранного бэкенда.
// Возвращаемая функция освобождает ресурсы (пул соединений).
func (c *Config) OpenStore(ctx context.Context) (repo.RecordStore, func(), error) {
	noop := func() {}

	switch c.StoreBackend {
	case repo.BackendMemory:
		return repo.NewMemoryStore(), noop, nil

	case repo.BackendDynamoDB:
		store, err := repo.NewDynamoStore(ctx, repo.DynamoConfig{
			Region:   c.AWSRegion,
			Endpoint: c.DynamoEndpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case repo.BackendPostgres:
		pool, err := repo.NewPool(ctx, c.DBURL)
		if err != nil {
			return nil, noop, err
		}
		return repo.NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, c.StoreBackend)
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
