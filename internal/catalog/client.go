// Package catalog is the HTTP client for the paginated institution catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Fields  []string
	// State restricts results to one state when set.
	State string
}

// Client fetches catalog pages.
type Client struct {
	http   *resty.Client
	apiKey string
	fields string
	state  string
}

// NewClient builds a catalog client.
func NewClient(opts Options) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("accept", "application/json")
	client.SetHeader("user-agent", "roi-ingest/1.0")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	return &Client{
		http:   client,
		apiKey: opts.APIKey,
		fields: strings.Join(fields, ","),
		state:  strings.ToUpper(strings.TrimSpace(opts.State)),
	}
}

// FetchPage requests one zero-based page.
//
// Errors are classified: transport failures, 429 and 5xx are transient;
// 401/403 are config errors; any other non-2xx or an undecodable body is an
// upstream error.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) (*Page, error) {
	op := fmt.Sprintf("catalog page %d", page)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":  c.apiKey,
			"fields":   c.fields,
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(perPage),
		})
	if c.state != "" {
		req.SetQueryParam("school.state", c.state)
	}

	res, err := req.Get("/schools.json")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, etlerr.New(etlerr.KindTransient, op, "request failed", err)
	}

	if err := classifyStatus(op, res.StatusCode(), res.Body()); err != nil {
		return nil, err
	}

	var p Page
	if err := json.Unmarshal(res.Body(), &p); err != nil {
		return nil, etlerr.New(etlerr.KindUpstream, op, "decode response", err)
	}
	return &p, nil
}

func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return etlerr.New(etlerr.KindTransient, op, fmt.Sprintf("HTTP %d", status), errors.New(snippet(body)))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return etlerr.New(etlerr.KindConfig, op, fmt.Sprintf("credential rejected (HTTP %d)", status), errors.New(snippet(body)))
	default:
		return etlerr.New(etlerr.KindUpstream, op, fmt.Sprintf("HTTP %d", status), errors.New(snippet(body)))
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// TotalPages derives the page count from metadata.total. ok is false when
// the response carried no usable total.
func (p *Page) TotalPages(perPage int) (pages int, ok bool) {
	if p == nil || p.Metadata == nil || perPage <= 0 || p.Metadata.Total <= 0 {
		return 0, false
	}
	return (p.Metadata.Total + perPage - 1) / perPage, true
}
