// Package calendar builds Microsoft Graph calendar requests.
package calendar

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// DefaultPageSize is used when no top is given.
const DefaultPageSize = 50

// DefaultWindow is the span of a calendar view when only one bound is given.
const DefaultWindow = 7 * 24 * time.Hour

const (
	dateLayout  = "2006-01-02"
	eventFields = "id,subject,organizer,start,end,location,isAllDay,isCancelled,webLink"
)

// ListQuery selects events. With a time window it expands recurring events
// through calendarView; without one it lists the event series.
type ListQuery struct {
	Top   int
	Start time.Time
	End   time.Time
}

// DefaultListQuery returns an unbounded listing.
func DefaultListQuery() *ListQuery {
	return &ListQuery{Top: DefaultPageSize}
}

// ParseListQuery reads top, start and end from request parameters. Times are
// RFC 3339 or plain dates. A single bound is widened by DefaultWindow.
func ParseListQuery(params map[string]string) (*ListQuery, error) {
	q := DefaultListQuery()

	top, err := microsoft.ParsePageSize(params["top"], DefaultPageSize, microsoft.MaxPageSize)
	if err != nil {
		return nil, err
	}
	q.Top = top

	if q.Start, err = parseTime(params["start"]); err != nil {
		return nil, err
	}
	if q.End, err = parseTime(params["end"]); err != nil {
		return nil, err
	}

	switch {
	case q.Start.IsZero() && q.End.IsZero():
	case q.End.IsZero():
		q.End = q.Start.Add(DefaultWindow)
	case q.Start.IsZero():
		q.Start = q.End.Add(-DefaultWindow)
	}
	if !q.Start.IsZero() && !q.End.After(q.Start) {
		return nil, fmt.Errorf("%w: end must be after start", microsoft.ErrInvalidRequest)
	}
	return q, nil
}

func parseTime(val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, val); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: times must be RFC 3339 or YYYY-MM-DD", microsoft.ErrInvalidRequest)
}

// Windowed reports whether the query uses calendarView.
func (q *ListQuery) Windowed() bool {
	return !q.Start.IsZero()
}

// Request returns the Graph call listing events.
func (q *ListQuery) Request() microsoft.Request {
	values := url.Values{
		"$top":     {strconv.Itoa(q.Top)},
		"$select":  {eventFields},
		"$orderby": {"start/dateTime"},
	}
	path := "/me/events"
	if q.Windowed() {
		path = "/me/calendarView"
		values.Set("startDateTime", q.Start.Format(time.RFC3339))
		values.Set("endDateTime", q.End.Format(time.RFC3339))
	}

	return microsoft.Request{
		Resource: domain.ResourceCalendar,
		Method:   http.MethodGet,
		Path:     path,
		Query:    values,
	}
}

// DeleteRequest returns the Graph call deleting one event.
func DeleteRequest(eventID string) (microsoft.Request, error) {
	id, err := microsoft.PathSegment(eventID)
	if err != nil {
		return microsoft.Request{}, err
	}
	return microsoft.Request{
		Resource: domain.ResourceCalendar,
		Method:   http.MethodDelete,
		Path:     "/me/events/" + id,
	}, nil
}
