// Package catalog wraps the generated book catalog client.
package catalog

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.4.1 -config catalogapi/oapi-codegen.yaml catalogapi/catalog.yaml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Apurer/bookshop-order-service/internal/clients/http/catalog/catalogapi"
)

// Book is the catalog's book representation.
type Book = catalogapi.Book

// ErrBookNotFound is returned when the catalog answers 404 for an ISBN.
var ErrBookNotFound = errors.New("book not found in catalog")

// ErrMalformedPayload is returned when a 200 response carries no usable book.
var ErrMalformedPayload = errors.New("catalog API returned a malformed book payload")

// StatusError reports a non-success catalog response other than 404.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog API unexpected status: %s", e.Status)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Client wraps the generated catalog client with a simplified GetBook helper.
type Client struct {
	api catalogapi.ClientInterface
}

// NewCatalogClient instantiates the catalog client with sane defaults.
func NewCatalogClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	api, err := catalogapi.NewClient(baseURL, catalogapi.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("build catalog client: %w", err)
	}
	return &Client{api: api}, nil
}

// GetBook fetches one book by ISBN.
func (c *Client) GetBook(ctx context.Context, isbn string) (*Book, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("catalog client not configured")
	}
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, errors.New("isbn is required")
	}
	raw, err := c.api.GetBook(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("call catalog API: %w", err)
	}
	resp, err := catalogapi.ParseGetBookResponse(raw)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr) {
			return nil, fmt.Errorf("read catalog response: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	switch status := resp.StatusCode(); {
	case status == http.StatusOK && resp.JSON200 != nil:
		return resp.JSON200, nil
	case status == http.StatusOK:
		return nil, ErrMalformedPayload
	case status == http.StatusNotFound:
		return nil, ErrBookNotFound
	default:
		return nil, &StatusError{Code: status, Status: resp.Status()}
	}
}
