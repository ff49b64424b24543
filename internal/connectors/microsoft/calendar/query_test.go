package calendar

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

func TestParseListQuery_Defaults(t *testing.T) {
	q, err := ParseListQuery(map[string]string{})

	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, q.Top)
	assert.False(t, q.Windowed())
}

func TestParseListQuery_Window(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		params    map[string]string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "both bounds",
			params:    map[string]string{"start": "2026-03-02T00:00:00Z", "end": "2026-03-03T00:00:00Z"},
			wantStart: day,
			wantEnd:   day.Add(24 * time.Hour),
		},
		{
			name:      "plain dates",
			params:    map[string]string{"start": "2026-03-02", "end": "2026-03-04"},
			wantStart: day,
			wantEnd:   day.Add(48 * time.Hour),
		},
		{
			name:      "offset converted to UTC",
			params:    map[string]string{"start": "2026-03-02T01:00:00+01:00", "end": "2026-03-02T12:00:00Z"},
			wantStart: day,
			wantEnd:   day.Add(12 * time.Hour),
		},
		{
			name:      "start only",
			params:    map[string]string{"start": "2026-03-02"},
			wantStart: day,
			wantEnd:   day.Add(DefaultWindow),
		},
		{
			name:      "end only",
			params:    map[string]string{"end": "2026-03-09"},
			wantStart: day,
			wantEnd:   day.Add(DefaultWindow),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseListQuery(tt.params)

			require.NoError(t, err)
			assert.True(t, q.Windowed())
			assert.True(t, tt.wantStart.Equal(q.Start), "start %s", q.Start)
			assert.True(t, tt.wantEnd.Equal(q.End), "end %s", q.End)
		})
	}
}

func TestParseListQuery_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{name: "bad start", params: map[string]string{"start": "yesterday"}},
		{name: "bad end", params: map[string]string{"end": "03/02/2026"}},
		{name: "end before start", params: map[string]string{"start": "2026-03-05", "end": "2026-03-02"}},
		{name: "empty window", params: map[string]string{"start": "2026-03-05", "end": "2026-03-05"}},
		{name: "bad top", params: map[string]string{"top": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListQuery(tt.params)
			assert.ErrorIs(t, err, microsoft.ErrInvalidRequest)
		})
	}
}

func TestListQuery_Request(t *testing.T) {
	req := (&ListQuery{Top: 20}).Request()

	assert.Equal(t, domain.ResourceCalendar, req.Resource)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/me/events", req.Path)
	assert.Equal(t, "20", req.Query.Get("$top"))
	assert.Empty(t, req.Query.Get("startDateTime"))
}

func TestListQuery_RequestWindowed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	req := (&ListQuery{Top: 50, Start: start, End: start.Add(time.Hour)}).Request()

	assert.Equal(t, "/me/calendarView", req.Path)
	assert.Equal(t, "2026-03-02T09:00:00Z", req.Query.Get("startDateTime"))
	assert.Equal(t, "2026-03-02T10:00:00Z", req.Query.Get("endDateTime"))
}

func TestDeleteRequest(t *testing.T) {
	req, err := DeleteRequest("AAMkAGI2EVENT")

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/me/events/AAMkAGI2EVENT", req.Path)

	_, err = DeleteRequest("")
	assert.ErrorIs(t, err, microsoft.ErrInvalidRequest)
}
