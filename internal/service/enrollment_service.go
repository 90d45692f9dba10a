package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-activities-api/internal/dto"
	"github.com/noah-isme/gema-activities-api/internal/models"
	"github.com/noah-isme/gema-activities-api/internal/observability"
	"github.com/noah-isme/gema-activities-api/internal/registry"
	"github.com/noah-isme/gema-activities-api/internal/repository"
)

var (
	// ErrInvalidEmail indicates the participant email is missing or malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrHistoryUnavailable indicates no audit store is configured.
	ErrHistoryUnavailable = errors.New("enrollment history is not available")
)

// EnrollmentServiceOptions tunes request validation.
type EnrollmentServiceOptions struct {
	// StrictEmail rejects emails that are not syntactically valid addresses.
	StrictEmail bool
}

// EnrollmentService exposes the activity catalog and the enroll/withdraw workflow.
type EnrollmentService interface {
	ListActivities(ctx context.Context) map[string]registry.ActivityView
	Catalog(ctx context.Context) registry.Catalog
	GetActivity(ctx context.Context, name string) (registry.ActivityView, error)
	Enroll(ctx context.Context, req dto.EnrollmentRequest) (dto.EnrollmentResponse, error)
	Withdraw(ctx context.Context, req dto.EnrollmentRequest) (dto.EnrollmentResponse, error)
	History(ctx context.Context, req dto.EnrollmentLogListRequest) (dto.EnrollmentLogListResponse, error)
	Subscribe() (<-chan dto.EnrollmentEvent, func())
}

type enrollmentService struct {
	registry  *registry.Registry
	logs      repository.EnrollmentLogRepository
	publisher EventPublisher
	validator *validator.Validate
	options   EnrollmentServiceOptions
	broker    *enrollmentBroker
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEnrollmentService constructs the enrollment service. logs and publisher are optional.
func NewEnrollmentService(reg *registry.Registry, logs repository.EnrollmentLogRepository, publisher EventPublisher, validate *validator.Validate, options EnrollmentServiceOptions, logger zerolog.Logger) EnrollmentService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	for name, view := range reg.List() {
		observability.ActivityParticipants().WithLabelValues(name).Set(float64(len(view.Participants)))
	}

	return &enrollmentService{
		registry:  reg,
		logs:      logs,
		publisher: publisher,
		validator: validate,
		options:   options,
		broker:    newEnrollmentBroker(),
		logger:    logger.With().Str("component", "enrollment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-activities-api/internal/service/enrollment"),
	}
}

func (s *enrollmentService) ListActivities(ctx context.Context) map[string]registry.ActivityView {
	_, span := s.tracer.Start(ctx, "activities.list")
	defer span.End()

	return s.registry.List()
}

func (s *enrollmentService) Catalog(ctx context.Context) registry.Catalog {
	_, span := s.tracer.Start(ctx, "activities.catalog")
	defer span.End()

	return s.registry.Catalog()
}

func (s *enrollmentService) GetActivity(ctx context.Context, name string) (registry.ActivityView, error) {
	_, span := s.tracer.Start(ctx, "activities.get", trace.WithAttributes(attribute.String("activity.name", name)))
	defer span.End()

	view, err := s.registry.Get(name)
	if err != nil {
		span.SetStatus(codes.Error, "activity not found")
	}
	return view, err
}

func (s *enrollmentService) Enroll(ctx context.Context, req dto.EnrollmentRequest) (dto.EnrollmentResponse, error) {
	return s.mutate(ctx, registry.OperationEnroll, req, s.registry.Enroll)
}

func (s *enrollmentService) Withdraw(ctx context.Context, req dto.EnrollmentRequest) (dto.EnrollmentResponse, error) {
	return s.mutate(ctx, registry.OperationWithdraw, req, s.registry.Withdraw)
}

func (s *enrollmentService) mutate(ctx context.Context, op registry.Operation, req dto.EnrollmentRequest, apply func(name, email string) (registry.Confirmation, error)) (dto.EnrollmentResponse, error) {
	action := string(op)
	req.Email = strings.TrimSpace(req.Email)

	ctx, span := s.tracer.Start(ctx, "activities."+action, trace.WithAttributes(
		attribute.String("activity.name", req.Activity),
		attribute.String("enrollment.action", action),
	))
	defer span.End()

	// unknown activities are reported before the email is looked at
	if _, err := s.registry.Get(req.Activity); err != nil {
		span.SetStatus(codes.Error, outcomeLabel(err))
		observability.EnrollmentOutcomes().WithLabelValues(action, outcomeLabel(err)).Inc()
		return dto.EnrollmentResponse{}, err
	}

	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		observability.EnrollmentOutcomes().WithLabelValues(action, "invalid").Inc()
		return dto.EnrollmentResponse{}, err
	}

	confirmation, err := apply(req.Activity, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeLabel(err))
		observability.EnrollmentOutcomes().WithLabelValues(action, outcomeLabel(err)).Inc()
		return dto.EnrollmentResponse{}, err
	}

	observability.EnrollmentOutcomes().WithLabelValues(action, "ok").Inc()
	observability.ActivityParticipants().WithLabelValues(confirmation.Activity).Set(float64(confirmation.Participants))
	span.SetAttributes(attribute.Int("activity.participants", confirmation.Participants))

	s.record(ctx, confirmation, req)
	s.announce(ctx, confirmation, req)

	return dto.EnrollmentResponse{
		Activity:        confirmation.Activity,
		Email:           confirmation.Email,
		Action:          action,
		Participants:    confirmation.Participants,
		MaxParticipants: confirmation.MaxParticipants,
		Message:         confirmation.Message,
	}, nil
}

func (s *enrollmentService) validate(req dto.EnrollmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: email is required", ErrInvalidEmail)
	}

	if s.options.StrictEmail {
		if err := s.validator.Var(req.Email, "email"); err != nil {
			return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidEmail, req.Email)
		}
	}

	return nil
}

func (s *enrollmentService) record(ctx context.Context, confirmation registry.Confirmation, req dto.EnrollmentRequest) {
	if s.logs == nil {
		return
	}

	metadata := datatypes.JSONMap{"max_participants": confirmation.MaxParticipants}
	if source := strings.TrimSpace(req.Source); source != "" {
		metadata["source"] = source
	}

	entry := models.EnrollmentLog{
		Activity:      confirmation.Activity,
		Email:         confirmation.Email,
		Action:        string(confirmation.Operation),
		Participants:  confirmation.Participants,
		CorrelationID: req.CorrelationID,
		Metadata:      metadata,
	}

	if err := s.logs.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).
			Str("activity", confirmation.Activity).
			Str("action", entry.Action).
			Str("correlation_id", req.CorrelationID).
			Msg("failed to persist enrollment log")
	}
}

func (s *enrollmentService) announce(ctx context.Context, confirmation registry.Confirmation, req dto.EnrollmentRequest) {
	event := dto.EnrollmentEvent{
		ID:              uuid.NewString(),
		Activity:        confirmation.Activity,
		Email:           confirmation.Email,
		Action:          string(confirmation.Operation),
		Participants:    confirmation.Participants,
		MaxParticipants: confirmation.MaxParticipants,
		CorrelationID:   req.CorrelationID,
		OccurredAt:      time.Now().UTC(),
	}

	s.broker.broadcast(event)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("activity", event.Activity).
			Str("event_id", event.ID).
			Msg("failed to publish enrollment event")
	}
}

func (s *enrollmentService) History(ctx context.Context, req dto.EnrollmentLogListRequest) (dto.EnrollmentLogListResponse, error) {
	if s.logs == nil {
		return dto.EnrollmentLogListResponse{}, ErrHistoryUnavailable
	}

	req.Activity = strings.TrimSpace(req.Activity)
	req.Email = strings.TrimSpace(req.Email)
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if err := s.validator.Struct(req); err != nil {
		return dto.EnrollmentLogListResponse{}, err
	}

	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)

	entries, total, err := s.logs.List(ctx, repository.EnrollmentLogFilter{
		Page:     page,
		PageSize: pageSize,
		Activity: req.Activity,
		Email:    req.Email,
		Action:   req.Action,
	})
	if err != nil {
		return dto.EnrollmentLogListResponse{}, fmt.Errorf("list enrollment logs: %w", err)
	}

	items := make([]dto.EnrollmentLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewEnrollmentLogResponse(entry))
	}

	return dto.EnrollmentLogListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func (s *enrollmentService) Subscribe() (<-chan dto.EnrollmentEvent, func()) {
	channel := make(chan dto.EnrollmentEvent, enrollmentStreamBufferSize)

	s.broker.subscribe(channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, registry.ErrActivityNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, registry.ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, registry.ErrActivityFull):
		return "full"
	case errors.Is(err, registry.ErrEmptyEmail):
		return "invalid"
	default:
		return "error"
	}
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
