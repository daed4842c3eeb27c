package service

import (
	"context"
	"time"

	"solarview/internal/discovery"
	"solarview/internal/logger"
	"solarview/internal/models"
	"solarview/internal/repository"
	"solarview/internal/store"
)

// PanelStore is the read/reload surface the HTTP layer needs from the panel
// state store.
type PanelStore interface {
	Snapshot() []models.PanelState
	Load() error
	SystemTopologies() []models.SystemTopology
	KnownPanels() []models.TopologyEntry
	Translations() map[string]string
}

// EventLog exposes the append-only operational log with filtered access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SystemEvent, error)
	Record(ctx context.Context, typ, description string, metadata any)
}

// LogFilter narrows an event log listing.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

// Service aggregates the application services handed to the HTTP layer.
type Service struct {
	Panels    PanelStore
	EventLog  EventLog
	Discovery *discovery.Service
}

func NewService(st *store.Store, repos *repository.Repository, disc *discovery.Service, log *logger.Logger) *Service {
	return &Service{
		Panels:    st,
		EventLog:  NewEventLogService(repos.EventRepo, log),
		Discovery: disc,
	}
}
