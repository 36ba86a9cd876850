package httpclient

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP requests to the panel API.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults. Panel calls are the
// only blocking points in the billing core, so the timeout is a hard bound.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBearerToken sets a bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithInsecureSkipVerify disables TLS verification. Many self-hosted panels
// run on self-signed certificates.
func (c *Client) WithInsecureSkipVerify() *Client {
	c.r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	return c
}

// Get sends a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.r.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Post sends a POST request with JSON body.
func (c *Client) Post(ctx context.Context, url string, body interface{}) ([]byte, error) {
	req := c.r.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// PostForm sends a POST request with form data.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string) ([]byte, error) {
	resp, err := c.r.R().SetContext(ctx).SetFormData(data).Post(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Put sends a PUT request with JSON body.
func (c *Client) Put(ctx context.Context, url string, body interface{}) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.r.R().SetContext(ctx).Delete(url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
