package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"solarview/internal/logger"
	"solarview/internal/models"
	"solarview/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, log: log}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := strings.TrimSpace(strings.ToUpper(f.Type))
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.SystemEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Record appends an operational event, best-effort: a failed append is
// logged and otherwise swallowed so event recording never disturbs the
// caller's own path.
func (s *EventLogService) Record(ctx context.Context, typ, description string, metadata any) {
	err := s.eventRepo.Append(ctx, models.SystemEvent{
		Type:        typ,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.Errorw("failed to record event", "type", typ, "err", err)
	}
}
