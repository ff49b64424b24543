package outlook

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

func TestDefaultListQuery(t *testing.T) {
	q := DefaultListQuery()

	assert.Equal(t, FolderInbox, q.FolderID)
	assert.Equal(t, DefaultPageSize, q.Top)
	assert.Zero(t, q.Skip)
	assert.Empty(t, q.Filter)
}

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]string
		expected ListQuery
		wantErr  bool
	}{
		{
			name:     "defaults",
			params:   map[string]string{},
			expected: ListQuery{FolderID: "inbox", Top: 25},
		},
		{
			name:     "sent items",
			params:   map[string]string{"folder": "sentitems", "top": "10", "skip": "20"},
			expected: ListQuery{FolderID: "sentitems", Top: 10, Skip: 20},
		},
		{
			name:     "folder with spaces",
			params:   map[string]string{"folder": "  drafts  "},
			expected: ListQuery{FolderID: "drafts", Top: 25},
		},
		{
			name:     "top clamped",
			params:   map[string]string{"top": "5000"},
			expected: ListQuery{FolderID: "inbox", Top: 1000},
		},
		{
			name:     "filter",
			params:   map[string]string{"filter": "isRead eq false"},
			expected: ListQuery{FolderID: "inbox", Top: 25, Filter: "isRead eq false"},
		},
		{name: "bad top", params: map[string]string{"top": "abc"}, wantErr: true},
		{name: "bad skip", params: map[string]string{"skip": "-3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseListQuery(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, microsoft.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *q)
		})
	}
}

func TestListQuery_Request(t *testing.T) {
	q := &ListQuery{FolderID: "inbox", Top: 10, Skip: 5}

	req, err := q.Request()

	require.NoError(t, err)
	assert.Equal(t, domain.ResourceMail, req.Resource)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/me/mailFolders/inbox/messages", req.Path)
	assert.Equal(t, "10", req.Query.Get("$top"))
	assert.Equal(t, "5", req.Query.Get("$skip"))
	assert.Equal(t, "receivedDateTime desc", req.Query.Get("$orderby"))
	assert.Contains(t, req.Query.Get("$select"), "subject")
}

func TestListQuery_RequestWithFilter(t *testing.T) {
	q := &ListQuery{FolderID: "AAMk/AGI=", Top: 25, Filter: "isRead eq false"}

	req, err := q.Request()

	require.NoError(t, err)
	assert.Equal(t, "/me/mailFolders/AAMk%2FAGI=/messages", req.Path)
	assert.Equal(t, "isRead eq false", req.Query.Get("$filter"))
	assert.Empty(t, req.Query.Get("$orderby"))
	assert.Empty(t, req.Query.Get("$skip"))
}

func TestDeleteRequest(t *testing.T) {
	req, err := DeleteRequest("AAMkAGI2ABC123")

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/me/messages/AAMkAGI2ABC123", req.Path)
	assert.Equal(t, domain.ResourceMail, req.Resource)

	_, err = DeleteRequest("")
	assert.ErrorIs(t, err, microsoft.ErrInvalidRequest)
}
