/**
 * @description
 * This file contains the core business logic for the rewards-service. The `Service`
 * struct orchestrates every reward operation, coordinating between the entity store and
 * the message broker.
 *
 * Key features:
 * - Implements the main use cases: scanning codes, drawing giveaway winners and redeeming rewards.
 * - Runs each mutation inside a single store transaction so no partial state is ever visible.
 * - Publishes events to RabbitMQ after commit for asynchronous processing by other services.
 * - Records latency and outcome metrics for each operation.
 *
 * @dependencies
 * - context, errors, fmt, log, math/rand/v2, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/metrics: Domain models, data access and metrics.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/metrics"
	"github.com/loyalty/rewards-service/internal/store"
	"github.com/loyalty/rewards-service/pkg/rabbitmq"
)

const (
	DefaultEventsExchange     = "loyalty.events"
	DefaultMaxCodesPerRequest = 10000

	publishTimeout = 5 * time.Second
)

// Settings carries the tunables of a Service. Zero values fall back to defaults.
type Settings struct {
	EventsExchange     string
	PublicBaseURL      string
	MaxCodesPerRequest int
	// Rand drives the giveaway shuffle. Tests inject a seeded source.
	Rand *rand.Rand
	Now  func() time.Time
}

// Service provides the core business logic for rewards.
type Service struct {
	repo               store.Store
	eventProducer      rabbitmq.Publisher
	exchange           string
	publicBaseURL      string
	maxCodesPerRequest int
	now                func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService creates a new rewards service instance.
func NewService(repo store.Store, producer rabbitmq.Publisher, settings Settings) *Service {
	s := &Service{
		repo:               repo,
		eventProducer:      producer,
		exchange:           settings.EventsExchange,
		publicBaseURL:      strings.TrimRight(settings.PublicBaseURL, "/"),
		maxCodesPerRequest: settings.MaxCodesPerRequest,
		now:                settings.Now,
		rng:                settings.Rand,
	}
	if s.eventProducer == nil {
		s.eventProducer = &rabbitmq.EventProducerFallback{}
	}
	if s.exchange == "" {
		s.exchange = DefaultEventsExchange
	}
	if s.maxCodesPerRequest <= 0 {
		s.maxCodesPerRequest = DefaultMaxCodesPerRequest
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// shuffle permutes n elements uniformly at random (Fisher-Yates).
func (s *Service) shuffle(n int, swap func(i, j int)) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(n, swap)
}

// requireBusinessOwner resolves the caller to a business account that owns a company.
func (s *Service) requireBusinessOwner(ctx context.Context, caller *domain.Identity) (*domain.Account, error) {
	if caller == nil || !caller.IsBusinessAccount {
		return nil, domain.ErrUnauthenticated
	}
	account, err := s.repo.FindAccount(ctx, caller.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !account.IsBusinessAccount {
		return nil, domain.ErrUnauthenticated
	}
	if account.CompanyID == nil {
		return nil, domain.WithMessage(domain.ErrForbidden, "Your account is not linked to a company.")
	}
	return account, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.ErrInvalidIdentifier
	}
	return id, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case domain.IsRetryable(err):
		return metrics.OutcomeConflict
	case domain.Known(err):
		return metrics.OutcomeReject
	}
	return metrics.OutcomeError
}

// finish records metrics and logs the outcome of an operation.
func (s *Service) finish(operation string, start time.Time, err error) {
	outcome := outcomeOf(err)
	metrics.RecordOperation(operation, outcome, time.Since(start).Seconds())
	switch outcome {
	case metrics.OutcomeReject, metrics.OutcomeConflict:
		log.Printf("level=warn component=app operation=%s outcome=%s reason=%q", operation, outcome, err)
	case metrics.OutcomeError:
		log.Printf("level=error component=app operation=%s outcome=error err=%v", operation, err)
	}
}

// publish sends an event after its transaction committed. Failures are logged, never returned:
// the committed state is authoritative.
func (s *Service) publish(ctx context.Context, routingKey string, event interface{}) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.eventProducer.Publish(pubCtx, s.exchange, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" exchange=%s routing_key=%s err=%v", s.exchange, routingKey, err)
	}
}
