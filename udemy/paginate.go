package udemy

import (
	"context"
	"encoding/json"
	"fmt"
)

// page is one response from a paginated list endpoint. The server hands back
// the absolute URL of the next page, or "" on the last one.
type page struct {
	Count   int               `json:"count"`
	Next    string            `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// fetchAllPages follows the server-supplied next link starting at u and
// returns the concatenation of every page's results, in page order. It aborts
// on the first failed request and returns no partial results.
func (c *Client) fetchAllPages(ctx context.Context, u string) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for u != "" {
		b, err := c.getJSON(ctx, u)
		if err != nil {
			return nil, err
		}

		var p page
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("%w: decoding page: %v", ErrMalformed, err)
		}

		all = append(all, p.Results...)
		u = p.Next
	}

	return all, nil
}
