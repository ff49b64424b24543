// Package onedrive builds Microsoft Graph drive requests.
package onedrive

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// DefaultPageSize is used when no top is given.
const DefaultPageSize = 100

const itemFields = "id,name,size,folder,file,lastModifiedDateTime,parentReference,webUrl"

// ChildrenQuery lists one folder. An empty ItemID is the drive root.
type ChildrenQuery struct {
	ItemID string
	Top    int
}

// ParseChildrenQuery reads item_id and top from request parameters.
func ParseChildrenQuery(params map[string]string) (*ChildrenQuery, error) {
	top, err := microsoft.ParsePageSize(params["top"], DefaultPageSize, microsoft.MaxPageSize)
	if err != nil {
		return nil, err
	}
	return &ChildrenQuery{
		ItemID: strings.TrimSpace(params["item_id"]),
		Top:    top,
	}, nil
}

// Request returns the Graph call listing the folder's children.
func (q *ChildrenQuery) Request() (microsoft.Request, error) {
	path := "/me/drive/root/children"
	if q.ItemID != "" {
		id, err := microsoft.PathSegment(q.ItemID)
		if err != nil {
			return microsoft.Request{}, err
		}
		path = fmt.Sprintf("/me/drive/items/%s/children", id)
	}

	return microsoft.Request{
		Resource: domain.ResourceFiles,
		Method:   http.MethodGet,
		Path:     path,
		Query: url.Values{
			"$top":    {strconv.Itoa(q.Top)},
			"$select": {itemFields},
		},
	}, nil
}

// DeleteRequest returns the Graph call moving one item to the recycle bin.
func DeleteRequest(itemID string) (microsoft.Request, error) {
	id, err := microsoft.PathSegment(itemID)
	if err != nil {
		return microsoft.Request{}, err
	}
	return microsoft.Request{
		Resource: domain.ResourceFiles,
		Method:   http.MethodDelete,
		Path:     "/me/drive/items/" + id,
	}, nil
}
