package directus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/dssr/internal/shared"
)

// Item is one record of a collection, keyed by field name.
type Item map[string]any

// Query narrows an items read.
type Query struct {
	Fields []string
	Filter map[string]any
	Sort   []string
	Limit  int
	Offset int
	Search string
}

// Values encodes q the way the items endpoint expects it.
func (q Query) Values() (url.Values, error) {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.Limit != 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(q.Filter) > 0 {
		data, err := json.Marshal(q.Filter)
		if err != nil {
			return nil, fmt.Errorf("%w: filter: %v", shared.ErrInvalidInput, err)
		}
		v.Set("filter", string(data))
	}
	return v, nil
}

// ReadItems lists a collection.
func (c *Client) ReadItems(ctx context.Context, collection string, q Query) ([]Item, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection", shared.ErrMissingArgument)
	}

	values, err := q.Values()
	if err != nil {
		return nil, err
	}

	hc, err := c.authorizedClient(ctx)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := c.do(ctx, hc, http.MethodGet, "items/"+collection, values, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ReadItem fetches one record. Directus answers 403 for records that do not exist or are not visible,
// so both 403 and 404 map to [shared.ErrItemNotFound].
func (c *Client) ReadItem(ctx context.Context, collection, id string) (Item, error) {
	if collection == "" || id == "" {
		return nil, fmt.Errorf("%w: collection and id", shared.ErrMissingArgument)
	}
	return c.readOne(ctx, "items/"+collection+"/"+id)
}

// ReadSingleton fetches a singleton collection, which Directus serves at the collection path itself.
func (c *Client) ReadSingleton(ctx context.Context, collection string) (Item, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection", shared.ErrMissingArgument)
	}
	return c.readOne(ctx, "items/"+collection)
}

func (c *Client) readOne(ctx context.Context, path string) (Item, error) {
	hc, err := c.authorizedClient(ctx)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := c.do(ctx, hc, http.MethodGet, path, nil, nil, &item); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrItemNotFound, path, err)
		}
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, path)
	}
	return item, nil
}
