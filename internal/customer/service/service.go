package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,EventPublisher,Cache

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	customermetrics "customerhub/internal/customer/metrics"
	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
)

// Store persists Customer aggregates.
//
// Create fails with an error wrapping sentinel.ErrAlreadyUsed and either
// models.ErrDuplicateEmail or models.ErrDuplicateIdentityNumber when a unique
// attribute is taken. Update fails with sentinel.ErrConflict when the stored
// version differs from the aggregate's. Finders return sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, customer *models.Customer) error
	Update(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindByIdentityNumber(ctx context.Context, identityNumber string) (*models.Customer, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Customer, error)
}

// EventPublisher records domain events. Implementations writing to an outbox
// must join the transaction carried by ctx.
type EventPublisher interface {
	Publish(ctx context.Context, events []models.DomainEvent) error
}

// Cache holds CustomerView read models. Get returns sentinel.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	Set(ctx context.Context, view *models.CustomerView) error
	// Invalidate drops the view and rejects later Sets below version.
	Invalidate(ctx context.Context, customerID id.CustomerID, version int64) error
}

// StoreTx provides the transactional boundary for a load-mutate-save cycle.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type serviceConfig struct {
	logger    *slog.Logger
	metrics   *customermetrics.Metrics
	publisher EventPublisher
	tx        StoreTx
	cache     Cache
	tracer    trace.Tracer
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *customermetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(c *serviceConfig) {
		c.publisher = p
	}
}

func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) {
		c.tx = tx
	}
}

func WithCache(cache Cache) Option {
	return func(c *serviceConfig) {
		c.cache = cache
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *serviceConfig) {
		c.tracer = tracer
	}
}

// Service orchestrates the customer aggregate against its store, event
// outbox and read cache.
type Service struct {
	customers    Store
	publisher    EventPublisher
	tx           StoreTx
	cache        Cache
	metrics      *customermetrics.Metrics
	tracer       trace.Tracer
	logger       *slog.Logger
	auditEmitter *auditEmitter
}

func New(customers Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	tracer := cfg.tracer
	if tracer == nil {
		tracer = otel.Tracer("customerhub/internal/customer/service")
	}
	return &Service{
		customers:    customers,
		publisher:    cfg.publisher,
		tx:           tx,
		cache:        cfg.cache,
		metrics:      cfg.metrics,
		tracer:       tracer,
		logger:       logger,
		auditEmitter: newAuditEmitter(logger),
	}
}
