package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"solarview/internal/discovery"
	"solarview/internal/logger"
	"solarview/internal/models"
	"solarview/internal/push"
	"solarview/internal/service"
)

// mockPanels implements service.PanelStore.
type mockPanels struct {
	snapshot     []models.PanelState
	systems      []models.SystemTopology
	known        []models.TopologyEntry
	translations map[string]string
	loadErr      error

	loadCalls int
}

func (m *mockPanels) Snapshot() []models.PanelState { return m.snapshot }

func (m *mockPanels) Load() error {
	m.loadCalls++
	return m.loadErr
}

func (m *mockPanels) SystemTopologies() []models.SystemTopology { return m.systems }
func (m *mockPanels) KnownPanels() []models.TopologyEntry       { return m.known }
func (m *mockPanels) Translations() map[string]string           { return m.translations }

// mockEventLog implements service.EventLog.
type mockEventLog struct {
	listFilter service.LogFilter
	listOut    []models.SystemEvent
	listErr    error

	recorded []string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.SystemEvent, error) {
	m.listFilter = f
	return m.listOut, m.listErr
}

func (m *mockEventLog) Record(_ context.Context, typ, _ string, _ any) {
	m.recorded = append(m.recorded, typ)
}

// idleRunner blocks until the session context is cancelled.
type idleRunner struct{}

func (idleRunner) Run(ctx context.Context) { <-ctx.Done() }

func newTestDiscovery() *discovery.Service {
	return discovery.New(func(*discovery.Service) discovery.Runner { return idleRunner{} }, logger.NewNop())
}

func newTestHub() *push.Manager {
	return push.NewManager(10*time.Millisecond, time.Minute, logger.NewNop())
}

func newTestRouter(s *service.Service, hub *push.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, hub, logger.NewNop()).InitRoutes()
}
