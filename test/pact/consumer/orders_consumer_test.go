//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"

	pacttest "github.com/Apurer/bookshop-order-service/test/pact"
)

type orderPayload struct {
	ID        int64    `json:"id"`
	BookISBN  string   `json:"bookIsbn"`
	BookName  *string  `json:"bookName"`
	BookPrice *float64 `json:"bookPrice"`
	Quantity  int      `json:"quantity"`
	Status    string   `json:"status"`
	CreatedBy string   `json:"createdBy"`
	Version   int      `json:"version"`
}

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type apiError struct {
	status int
	title  string
}

func (e apiError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.title, e.status)
}

func TestStorefrontOrdersContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	acceptedOrder := matchers.Map{
		"id":        matchers.Like(1),
		"bookIsbn":  matchers.S(pacttest.AvailableISBN),
		"bookName":  matchers.S(pacttest.BookTitle + " - " + pacttest.BookAuthor),
		"bookPrice": matchers.Like(pacttest.BookPrice),
		"quantity":  matchers.Like(1),
		"status":    matchers.Term("ACCEPTED", "ACCEPTED|REJECTED|DISPATCHED"),
		"createdBy": matchers.S(pacttest.Subject),
		"version":   matchers.Like(0),
	}

	pact.AddInteraction().
		Given(pacttest.StateOrdersBaseline).
		UponReceiving("a submission for a catalogued book").
		WithRequest("POST", "/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.Header(pacttest.IdentityHeader, matchers.S(pacttest.Subject))
			b.JSONBody(pacttest.ExampleOrderRequest())
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(acceptedOrder)
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderExists).
		UponReceiving("a request listing the caller's orders").
		WithRequest("GET", "/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Header(pacttest.IdentityHeader, matchers.S(pacttest.Subject))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.EachLike(acceptedOrder, 1))
		})

	pact.AddInteraction().
		Given(pacttest.StateOrdersBaseline).
		UponReceiving("a submission without caller identity").
		WithRequest("POST", "/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(pacttest.ExampleOrderRequest())
		}).
		WillRespondWith(http.StatusUnauthorized, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/unauthorized"),
				"title":  matchers.S("Unauthorized"),
				"status": matchers.Like(http.StatusUnauthorized),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		client := newOrdersClient(config)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		created, err := client.Submit(ctx, pacttest.Subject, pacttest.ExampleOrderRequest())
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}
		if created.Status != "ACCEPTED" || created.BookName == nil {
			return fmt.Errorf("expected an accepted order, got %+v", created)
		}

		orders, err := client.List(ctx, pacttest.Subject)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			return fmt.Errorf("expected at least one order for %s", pacttest.Subject)
		}

		if _, err := client.Submit(ctx, "", pacttest.ExampleOrderRequest()); err == nil {
			return fmt.Errorf("expected anonymous submission to fail")
		} else if apiErr, ok := err.(apiError); !ok || apiErr.status != http.StatusUnauthorized {
			return fmt.Errorf("expected 401, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}

type ordersClient struct {
	baseURL    string
	httpClient *http.Client
}

func newOrdersClient(config pactconsumer.MockServerConfig) *ordersClient {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	transport := &http.Transport{TLSClientConfig: config.TLSConfig}
	return &ordersClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, config.Port),
		httpClient: &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

func (c *ordersClient) Submit(ctx context.Context, subject string, payload map[string]any) (*orderPayload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set(pacttest.IdentityHeader, subject)
	}
	var order orderPayload
	if err := c.do(req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *ordersClient) List(ctx context.Context, subject string) ([]orderPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(pacttest.IdentityHeader, subject)
	var orders []orderPayload
	if err := c.do(req, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *ordersClient) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		var problem problemDetail
		_ = json.NewDecoder(res.Body).Decode(&problem)
		return apiError{status: res.StatusCode, title: problem.Title}
	}
	return json.NewDecoder(res.Body).Decode(out)
}
