package ssi

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/resilience"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// Client implements ports.Broker against the broker's order-management REST
// endpoints, wrapping every call in a circuit breaker and a bounded retry so
// a flaky broker connection degrades rather than cascades.
type Client struct {
	http   *resty.Client
	auth   *Authenticator
	signer *RequestSigner
	cb     *resilience.CircuitBreaker
	retry  resilience.RetryConfig
	base   string
}

func NewClient(http *resty.Client, baseURL string, auth *Authenticator, key *rsa.PrivateKey) *Client {
	return &Client{
		http:   http,
		auth:   auth,
		signer: NewRequestSigner(key),
		cb:     resilience.NewCircuitBreaker("ssi-broker", 5, 30*time.Second),
		retry:  resilience.DefaultRetryConfig(),
		base:   baseURL,
	}
}

type placeOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"orderType"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

type placeOrderResponse struct {
	BrokerOrderID string `json:"brokerOrderId"`
}

func (c *Client) PlaceOrder(ctx context.Context, o domain.Order) (string, error) {
	var brokerOrderID string

	err := resilience.Do(ctx, "ssi.place_order", c.retry, func(ctx context.Context) error {
		return c.cb.Call(ctx, func(ctx context.Context) error {
			path := "/orders"
			reqBody := placeOrderRequest{
				Symbol:   string(o.Symbol),
				Side:     string(o.Side),
				Type:     string(o.Type),
				Quantity: int64(o.Quantity),
				Price:    o.Price.String(),
			}

			token, err := c.auth.AccessToken(ctx)
			if err != nil {
				return fmt.Errorf("ssi: acquire access token: %w", err)
			}

			var result placeOrderResponse
			resp, err := c.signedRequest(ctx, "POST", path, reqBody, &result, token)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("ssi: place_order rejected with status %d", resp.StatusCode())
			}

			brokerOrderID = result.BrokerOrderID
			return nil
		})
	})

	return brokerOrderID, err
}

func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return resilience.Do(ctx, "ssi.cancel_order", c.retry, func(ctx context.Context) error {
		return c.cb.Call(ctx, func(ctx context.Context) error {
			token, err := c.auth.AccessToken(ctx)
			if err != nil {
				return fmt.Errorf("ssi: acquire access token: %w", err)
			}
			path := fmt.Sprintf("/orders/%s/cancel", brokerOrderID)
			resp, err := c.signedRequest(ctx, "POST", path, nil, nil, token)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("ssi: cancel_order rejected with status %d", resp.StatusCode())
			}
			return nil
		})
	})
}

type orderStatusResponse struct {
	Status         string `json:"status"`
	FilledQuantity int64  `json:"filledQuantity"`
	AvgFillPrice   string `json:"avgFillPrice"`
}

func (c *Client) GetOrderStatus(ctx context.Context, brokerOrderID string) (domain.OrderStatus, vo.Quantity, vo.Price, error) {
	var result orderStatusResponse

	err := resilience.Do(ctx, "ssi.get_order_status", c.retry, func(ctx context.Context) error {
		return c.cb.Call(ctx, func(ctx context.Context) error {
			token, err := c.auth.AccessToken(ctx)
			if err != nil {
				return fmt.Errorf("ssi: acquire access token: %w", err)
			}
			path := fmt.Sprintf("/orders/%s", brokerOrderID)
			resp, err := c.signedRequest(ctx, "GET", path, nil, &result, token)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("ssi: get_order_status failed with status %d", resp.StatusCode())
			}
			return nil
		})
	})
	if err != nil {
		return "", 0, vo.ZeroPrice, err
	}

	status := mapBrokerStatus(result.Status)
	price, perr := vo.NewPriceFromString(result.AvgFillPrice)
	if perr != nil {
		price = vo.ZeroPrice
	}

	return status, vo.Quantity(result.FilledQuantity), price, nil
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol *vo.Symbol) ([]ports.BrokerOrderSnapshot, error) {
	var raw []orderStatusResponse

	path := "/orders/open"
	if symbol != nil {
		path = fmt.Sprintf("/orders/open?symbol=%s", *symbol)
	}

	err := resilience.Do(ctx, "ssi.get_open_orders", c.retry, func(ctx context.Context) error {
		return c.cb.Call(ctx, func(ctx context.Context) error {
			token, err := c.auth.AccessToken(ctx)
			if err != nil {
				return fmt.Errorf("ssi: acquire access token: %w", err)
			}
			resp, err := c.signedRequest(ctx, "GET", path, nil, &raw, token)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("ssi: get_open_orders failed with status %d", resp.StatusCode())
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]ports.BrokerOrderSnapshot, 0, len(raw))
	for _, r := range raw {
		price, perr := vo.NewPriceFromString(r.AvgFillPrice)
		if perr != nil {
			price = vo.ZeroPrice
		}
		out = append(out, ports.BrokerOrderSnapshot{
			Status:         mapBrokerStatus(r.Status),
			FilledQuantity: vo.Quantity(r.FilledQuantity),
			AvgFillPrice:   price,
		})
	}
	return out, nil
}

// signedRequest attaches the RSA-signed timestamp/signature headers and
// executes the request through resty.
func (c *Client) signedRequest(ctx context.Context, method, path string, body, result interface{}, token string) (*resty.Response, error) {
	var bodyBytes []byte
	req := c.http.R().SetContext(ctx).SetAuthToken(token)
	if body != nil {
		marshaled, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ssi: marshal request body: %w", err)
		}
		bodyBytes = marshaled
		req = req.SetBody(body)
	}
	if result != nil {
		req = req.SetResult(result)
	}

	signature, timestamp, err := c.signer.Sign(method, path, bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("ssi: sign request: %w", err)
	}
	req = req.SetHeader("X-Signature", signature).SetHeader("X-Timestamp", timestamp)

	switch method {
	case "GET":
		return req.Get(c.base + path)
	case "POST":
		return req.Post(c.base + path)
	default:
		return nil, fmt.Errorf("ssi: unsupported method %q", method)
	}
}

// mapBrokerStatus defensively maps a broker wire-status string onto the
// local FSM's vocabulary. An unrecognized status is logged and treated as
// PENDING rather than crashing the synchronizer (spec.md §7).
func mapBrokerStatus(raw string) domain.OrderStatus {
	switch raw {
	case "PENDING", "NEW":
		return domain.Pending
	case "PARTIAL_FILL", "PARTIALLY_FILLED":
		return domain.PartialFill
	case "MATCHED", "FILLED":
		return domain.Matched
	case "REJECTED":
		return domain.Rejected
	case "BROKER_REJECTED":
		return domain.BrokerRejected
	case "CANCELLED", "CANCELED":
		return domain.Cancelled
	default:
		log.Warn().Str("broker_status", raw).Msg("📡 unrecognized broker status, defaulting to PENDING")
		return domain.Pending
	}
}
