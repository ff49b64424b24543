// Package sharepoint builds Microsoft Graph site requests.
package sharepoint

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// DefaultPageSize is used when no top is given.
const DefaultPageSize = 25

// SitesQuery searches the sites the user can see. An empty search lists all.
type SitesQuery struct {
	Search string
	Top    int
}

// ParseSitesQuery reads search and top from request parameters.
func ParseSitesQuery(params map[string]string) (*SitesQuery, error) {
	top, err := microsoft.ParsePageSize(params["top"], DefaultPageSize, microsoft.MaxPageSize)
	if err != nil {
		return nil, err
	}
	return &SitesQuery{
		Search: strings.TrimSpace(params["search"]),
		Top:    top,
	}, nil
}

// Request returns the Graph site search call.
func (q *SitesQuery) Request() microsoft.Request {
	search := q.Search
	if search == "" {
		search = "*"
	}
	return microsoft.Request{
		Resource: domain.ResourceSharePoint,
		Method:   http.MethodGet,
		Path:     "/sites",
		Query: url.Values{
			"search":  {search},
			"$top":    {strconv.Itoa(q.Top)},
			"$select": {"id,name,displayName,webUrl,description"},
		},
	}
}
