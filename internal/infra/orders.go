package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"
)

// ErrOrderNotFound is returned when the orders service does not know the order.
var ErrOrderNotFound = errors.New("order not found")

// OrderInfo is the subset of an order the till needs to book a refund.
type OrderInfo struct {
	ID             string               `json:"id"`
	PaymentChannel model.PaymentChannel `json:"payment_channel"`
}

// OrderClient is an HTTP client for the orders service. Every call goes
// through a circuit breaker so an outage degrades to the caller-supplied
// channel instead of blocking the till.
type OrderClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewOrderClient(baseURL string, cb *CircuitBreaker) *OrderClient {
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig())
	}
	return &OrderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Second},
		cb:         cb,
	}
}

// Breaker exposes the breaker for the health endpoint.
func (c *OrderClient) Breaker() *CircuitBreaker { return c.cb }

// Lookup fetches an order by id.
func (c *OrderClient) Lookup(ctx context.Context, orderID string) (*OrderInfo, error) {
	var info OrderInfo
	missing := false
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/orders/"+url.PathEscape(orderID), nil)
		if err != nil {
			return fmt.Errorf("orders: create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("orders: service unreachable: %w", err)
		}
		defer resp.Body.Close()

		// A missing order is an answer, not an outage.
		if resp.StatusCode == http.StatusNotFound {
			missing = true
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("orders: service returned %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return fmt.Errorf("orders: decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return &info, nil
}
