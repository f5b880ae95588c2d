package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures a RestyClient.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Headers   map[string]string
	AuthToken string
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyClientWithOptions creates a RestyClient bound to a base URL with
// default headers and optional bearer auth applied to every request.
func NewRestyClientWithOptions(opts Options) *RestyClient {
	c := newRestyBaseClient(opts.Timeout)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		c.SetBaseURL(base)
	}
	if len(opts.Headers) > 0 {
		c.SetHeaders(opts.Headers)
	}
	if tok := strings.TrimSpace(opts.AuthToken); tok != "" {
		c.SetAuthToken(tok)
	}
	c.SetHeader("Accept", "application/json")
	return &RestyClient{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	return r.finish(http.MethodGet, url, resp, err)
}

// Post performs an HTTP POST request sending body as JSON.
func (r *RestyClient) Post(ctx context.Context, url string, body any, headers map[string]string) (Response, error) {
	req := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Post(url)
	return r.finish(http.MethodPost, url, resp, err)
}

// finish normalizes resty results: transport failures and non-2xx statuses
// both become *TransportError.
func (r *RestyClient) finish(method, url string, resp *resty.Response, err error) (Response, error) {
	if err != nil {
		return nil, &TransportError{Kind: KindNetwork, Method: method, URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &TransportError{
			Kind:       KindStatus,
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       bodySnippet(resp.Body()),
		}
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
