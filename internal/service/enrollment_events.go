package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activities-api/internal/dto"
	"github.com/noah-isme/gema-activities-api/internal/observability"
)

const enrollmentStreamBufferSize = 32

// EventPublisher delivers enrollment events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.EnrollmentEvent) error
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewEventPublisher fans enrollment events out to Redis pub/sub and NATS.
// Either transport may be nil.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":enrollments"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".enrollments"
	}

	return &eventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "enrollment_event_publisher").Logger(),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event dto.EnrollmentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.EnrollmentEventsPublished().WithLabelValues("redis", "error").Inc()
			errs = append(errs, err)
		} else {
			observability.EnrollmentEventsPublished().WithLabelValues("redis", "ok").Inc()
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.EnrollmentEventsPublished().WithLabelValues("nats", "error").Inc()
			errs = append(errs, err)
		} else {
			observability.EnrollmentEventsPublished().WithLabelValues("nats", "ok").Inc()
		}
	}

	return errors.Join(errs...)
}

// enrollmentBroker fans events out to in-process subscribers.
type enrollmentBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.EnrollmentEvent]struct{}
}

func newEnrollmentBroker() *enrollmentBroker {
	return &enrollmentBroker{subscribers: make(map[chan dto.EnrollmentEvent]struct{})}
}

func (b *enrollmentBroker) subscribe(ch chan dto.EnrollmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *enrollmentBroker) unsubscribe(ch chan dto.EnrollmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *enrollmentBroker) broadcast(event dto.EnrollmentEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
