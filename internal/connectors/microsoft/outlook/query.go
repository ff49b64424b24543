// Package outlook builds Microsoft Graph mail requests.
package outlook

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// Well-known folder names accepted by Graph in place of a folder ID.
const (
	FolderInbox     = "inbox"
	FolderSentItems = "sentitems"
	FolderDrafts    = "drafts"
	FolderArchive   = "archive"
)

// DefaultPageSize is used when no top is given.
const DefaultPageSize = 25

const messageFields = "id,subject,from,toRecipients,receivedDateTime,isRead,hasAttachments,bodyPreview,webLink"

// ListQuery selects messages in one folder.
type ListQuery struct {
	// FolderID is a folder ID or a well-known folder name.
	FolderID string
	Top      int
	Skip     int
	// Filter is passed to Graph as $filter.
	Filter string
}

// DefaultListQuery returns the inbox, newest first.
func DefaultListQuery() *ListQuery {
	return &ListQuery{
		FolderID: FolderInbox,
		Top:      DefaultPageSize,
	}
}

// ParseListQuery reads folder, top, skip and filter from request parameters.
func ParseListQuery(params map[string]string) (*ListQuery, error) {
	q := DefaultListQuery()

	if val := strings.TrimSpace(params["folder"]); val != "" {
		q.FolderID = val
	}

	top, err := microsoft.ParsePageSize(params["top"], DefaultPageSize, microsoft.MaxPageSize)
	if err != nil {
		return nil, err
	}
	q.Top = top

	skip, err := microsoft.ParseOffset(params["skip"])
	if err != nil {
		return nil, err
	}
	q.Skip = skip

	q.Filter = strings.TrimSpace(params["filter"])
	return q, nil
}

// Request returns the Graph call listing the folder's messages.
func (q *ListQuery) Request() (microsoft.Request, error) {
	folder, err := microsoft.PathSegment(q.FolderID)
	if err != nil {
		return microsoft.Request{}, err
	}

	values := url.Values{
		"$top":    {strconv.Itoa(q.Top)},
		"$select": {messageFields},
	}
	if q.Skip > 0 {
		values.Set("$skip", strconv.Itoa(q.Skip))
	}
	if q.Filter != "" {
		values.Set("$filter", q.Filter)
	} else {
		// Graph rejects $orderby combined with most $filter expressions.
		values.Set("$orderby", "receivedDateTime desc")
	}

	return microsoft.Request{
		Resource: domain.ResourceMail,
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/me/mailFolders/%s/messages", folder),
		Query:    values,
	}, nil
}

// DeleteRequest returns the Graph call deleting one message.
func DeleteRequest(messageID string) (microsoft.Request, error) {
	id, err := microsoft.PathSegment(messageID)
	if err != nil {
		return microsoft.Request{}, err
	}
	return microsoft.Request{
		Resource: domain.ResourceMail,
		Method:   http.MethodDelete,
		Path:     "/me/messages/" + id,
	}, nil
}
