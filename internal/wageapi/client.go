package wageapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// Response statuses.
const (
	StatusSucceeded    = "REQUEST_SUCCEEDED"
	StatusNotProcessed = "REQUEST_NOT_PROCESSED"
)

// Request is the POST body for a series query.
type Request struct {
	SeriesID        []string `json:"seriesid"`
	RegistrationKey string   `json:"registrationkey"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	Catalog         bool     `json:"catalog"`
	Calculations    bool     `json:"calculations"`
	AnnualAverage   bool     `json:"annualaverage"`
}

// Response is the decoded reply.
type Response struct {
	Status       string   `json:"status"`
	ResponseTime int      `json:"responseTime"`
	Message      []string `json:"message"`
	Results      struct {
		Series []Series `json:"series"`
	} `json:"Results"`
}

// Series is one time series in a response.
type Series struct {
	SeriesID string      `json:"seriesID"`
	Catalog  *Catalog    `json:"catalog,omitempty"`
	Data     []DataPoint `json:"data"`
}

// Catalog is the optional series metadata block.
type Catalog struct {
	SeriesTitle    string `json:"series_title"`
	OccupationName string `json:"occupation"`
}

// DataPoint is one observation. Value is text; suppressed cells carry "-" or "*".
type DataPoint struct {
	Year       string `json:"year"`
	Period     string `json:"period"`
	PeriodName string `json:"periodName"`
	Value      string `json:"value"`
}

// QuotaExhausted reports whether the reply says the credential hit its limit.
func (r *Response) QuotaExhausted() bool {
	if r.Status != StatusNotProcessed {
		return false
	}
	for _, m := range r.Message {
		if strings.Contains(strings.ToLower(m), "threshold") {
			return true
		}
	}
	return false
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// Client posts series queries.
type Client struct {
	http *resty.Client
}

// NewClient builds a wage API client.
func NewClient(opts Options) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("content-type", "application/json")
	client.SetHeader("user-agent", "roi-ingest/1.0")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}
	return &Client{http: client}
}

// Fetch posts one request.
//
// Quota exhaustion (HTTP 429 or a "threshold" REQUEST_NOT_PROCESSED reply)
// returns KindQuotaExhausted so the caller can rotate credentials. Transport
// failures and 5xx are transient. Any other non-success reply is an upstream
// error.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	op := fmt.Sprintf("wage batch (%d series)", len(req.SeriesID))

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/timeseries/data/")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, etlerr.New(etlerr.KindTransient, op, "request failed", err)
	}

	status := res.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		return nil, etlerr.New(etlerr.KindQuotaExhausted, op, "HTTP 429", nil)
	case status >= 500:
		return nil, etlerr.New(etlerr.KindTransient, op, fmt.Sprintf("HTTP %d", status), nil)
	case status < 200 || status >= 300:
		return nil, etlerr.New(etlerr.KindUpstream, op, fmt.Sprintf("HTTP %d", status), nil)
	}

	var out Response
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, etlerr.New(etlerr.KindUpstream, op, "decode response", err)
	}

	if out.QuotaExhausted() {
		return &out, etlerr.New(etlerr.KindQuotaExhausted, op, strings.Join(out.Message, "; "), nil)
	}
	if out.Status != StatusSucceeded {
		return &out, etlerr.New(etlerr.KindUpstream, op,
			fmt.Sprintf("status %s", out.Status), errors.New(strings.Join(out.Message, "; ")))
	}
	return &out, nil
}
