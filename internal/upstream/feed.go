package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"authindex/internal/config"
	"authindex/internal/logging"
	"authindex/internal/marc"
)

// Resources published by the upstream service.
const (
	ResourceAuthorities = "authorities"
	ResourceBibs        = "bibs"
)

const windowLayout = "2006-01-02T15:04:05Z"

// ResourceFor maps an index type to its upstream resource.
func ResourceFor(indexType string) (string, error) {
	switch indexType {
	case config.IndexTypeAuthority:
		return ResourceAuthorities, nil
	case config.IndexTypeBibliographic:
		return ResourceBibs, nil
	default:
		return "", fmt.Errorf("unknown index type %q", indexType)
	}
}

// Window is the half-open change interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// String renders the window as the updatedDate query value.
func (w Window) String() string {
	return w.From.UTC().Format(windowLayout) + "," + w.To.UTC().Format(windowLayout)
}

func (c *Client) feedURL(resource, ext string, window Window, deleted bool) string {
	q := url.Values{}
	q.Set("updatedDate", window.String())
	if deleted {
		q.Set("deleted", "true")
	}
	if c.cfg.PageLimit > 0 {
		q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	}
	return c.cfg.BaseURL + "/" + resource + "." + ext + "?" + q.Encode()
}

// UpdatedRecords walks the MARCXML update feed for resource. fn receives each
// page in order; an error from fn stops the walk and is returned.
func (c *Client) UpdatedRecords(ctx context.Context, resource string, window Window, fn func(marc.Page) error) error {
	return c.walk(ctx, c.feedURL(resource, "marcxml", window, false), "updates", func(body []byte) (string, error) {
		page, err := c.parsePage(body)
		if err != nil {
			return "", err
		}
		if err := fn(page); err != nil {
			return "", err
		}
		return page.Next, nil
	})
}

// DeletedIDs walks the JSON deletion feed for resource, passing each page of
// ids to fn.
func (c *Client) DeletedIDs(ctx context.Context, resource string, window Window, fn func(ids []string) error) error {
	return c.walk(ctx, c.feedURL(resource, "json", window, true), "deletions", func(body []byte) (string, error) {
		next, ids, err := decodeDeletionPage(body, resource)
		if err != nil {
			return "", err
		}
		if err := fn(ids); err != nil {
			return "", err
		}
		return next, nil
	})
}

// FetchPage fetches and parses one MARCXML page.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (marc.Page, error) {
	body, err := c.get(ctx, rawURL, "page")
	if err != nil {
		return marc.Page{}, err
	}
	return c.parsePage(body)
}

func (c *Client) walk(ctx context.Context, first, op string, handle func([]byte) (string, error)) error {
	seen := make(map[string]struct{})
	next := first
	pages := 0
	for next != "" {
		if _, dup := seen[next]; dup {
			logging.WarnWithContext(c.logger, "upstream pagination loop detected", "upstream_pagination_loop",
				logging.String("url", next),
				logging.String(logging.FieldImpact, "remaining pages of this feed are skipped"),
			)
			return nil
		}
		seen[next] = struct{}{}
		body, err := c.get(ctx, next, op)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		pages++
		c.logger.Debug("upstream page fetched", logging.String("operation", op), logging.Int("page", pages))
		if next, err = handle(body); err != nil {
			return err
		}
		next = strings.TrimSpace(next)
	}
	return nil
}

func (c *Client) parsePage(body []byte) (marc.Page, error) {
	return marc.ReadPage(bytes.NewReader(body), marc.WithLogger(c.logger))
}

type deletionItem struct {
	ID   json.RawMessage `json:"id"`
	Marc *struct {
		Fields []map[string]json.RawMessage `json:"fields"`
	} `json:"marc"`
}

// decodeDeletionPage reads {"nextPage": "...", "<resource>": [{"id": ...}]}.
// The control number in marc.fields[001] wins over the numeric id when present.
func decodeDeletionPage(body []byte, resource string) (string, []string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", nil, fmt.Errorf("decode deletion page: %w", err)
	}
	var next string
	if raw, ok := envelope["nextPage"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &next); err != nil {
			return "", nil, fmt.Errorf("decode nextPage: %w", err)
		}
	}
	var items []deletionItem
	if raw, ok := envelope[resource]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", resource, err)
		}
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := item.recordID(); id != "" {
			ids = append(ids, id)
		}
	}
	return next, ids, nil
}

func (it deletionItem) recordID() string {
	if it.Marc != nil {
		for _, field := range it.Marc.Fields {
			if raw, ok := field["001"]; ok {
				if id := rawString(raw); id != "" {
					return id
				}
			}
		}
	}
	return rawString(it.ID)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
