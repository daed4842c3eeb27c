package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solarview/internal/models"
	"solarview/internal/service"
)

func TestGetEvents_FilterParsing(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		wantCode int
		check    func(t *testing.T, f service.LogFilter)
	}{
		{
			name:     "no_filters",
			query:    "",
			wantCode: http.StatusOK,
			check: func(t *testing.T, f service.LogFilter) {
				if !f.From.IsZero() || !f.To.IsZero() || f.Type != "" {
					t.Fatalf("expected empty filter, got %+v", f)
				}
			},
		},
		{
			name:     "rfc3339_range",
			query:    "?from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z",
			wantCode: http.StatusOK,
			check: func(t *testing.T, f service.LogFilter) {
				if f.From != time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) {
					t.Fatalf("from: %v", f.From)
				}
			},
		},
		{
			name:     "date_only_to_is_end_of_day",
			query:    "?to=2026-08-01",
			wantCode: http.StatusOK,
			check: func(t *testing.T, f service.LogFilter) {
				want := time.Date(2026, 8, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
				if !f.To.Equal(want) {
					t.Fatalf("to: want %v, got %v", want, f.To)
				}
			},
		},
		{
			name:     "datetime_layout",
			query:    "?from=2026-08-01%2010:30:00",
			wantCode: http.StatusOK,
			check: func(t *testing.T, f service.LogFilter) {
				if f.From != time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC) {
					t.Fatalf("from: %v", f.From)
				}
			},
		},
		{
			name:     "type_normalized",
			query:    "?type=broker_up",
			wantCode: http.StatusOK,
			check: func(t *testing.T, f service.LogFilter) {
				if f.Type != models.EventBrokerUp {
					t.Fatalf("type: %q", f.Type)
				}
			},
		},
		{
			name:     "bad_from",
			query:    "?from=yesterday",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad_to",
			query:    "?to=never",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "from_after_to",
			query:    "?from=2026-08-02&to=2026-08-01",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := &mockEventLog{}
			s := &service.Service{Panels: &mockPanels{}, EventLog: events, Discovery: newTestDiscovery()}
			r := newTestRouter(s, newTestHub())

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+tc.query, nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.check != nil {
				tc.check(t, events.listFilter)
			}
		})
	}
}
