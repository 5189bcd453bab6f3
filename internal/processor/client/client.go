package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/namevault/namevault/internal/config"
	processordomain "github.com/namevault/namevault/internal/processor/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(p Params) processordomain.Client {
	base := &http.Client{Timeout: p.Config.Processor.Timeout}

	creds := &clientcredentials.Config{
		ClientID:     p.Config.Processor.ClientID,
		ClientSecret: p.Config.Processor.ClientSecret,
		TokenURL:     p.Config.Processor.BaseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	var source oauth2.TokenSource = creds.TokenSource(ctx)
	if p.Redis != nil {
		source = newRedisTokenSource(p.Redis, source)
	}
	source = oauth2.ReuseTokenSource(nil, source)

	return &Client{
		baseURL: p.Config.Processor.BaseURL,
		http: &http.Client{
			Timeout:   p.Config.Processor.Timeout,
			Transport: &oauth2.Transport{Source: source, Base: http.DefaultTransport},
		},
		log: p.Log.Named("processor.client"),
	}
}

type amountBody struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type createOrderBody struct {
	Intent        string `json:"intent"`
	PurchaseUnits []struct {
		ReferenceID string     `json:"reference_id"`
		Description string     `json:"description,omitempty"`
		Amount      amountBody `json:"amount"`
	} `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string     `json:"id"`
				Status string     `json:"status"`
				Amount amountBody `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (c *Client) CreateOrder(ctx context.Context, req processordomain.CreateOrderRequest) (*processordomain.Order, error) {
	body := createOrderBody{Intent: "CAPTURE"}
	body.PurchaseUnits = append(body.PurchaseUnits, struct {
		ReferenceID string     `json:"reference_id"`
		Description string     `json:"description,omitempty"`
		Amount      amountBody `json:"amount"`
	}{
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Amount: amountBody{
			CurrencyCode: req.Currency,
			Value:        req.Amount.StringFixed(2),
		},
	})

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}

	order := &processordomain.Order{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
		}
	}
	return order, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*processordomain.CaptureResult, error) {
	var resp orderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	result := &processordomain.CaptureResult{OrderID: resp.ID, Status: resp.Status}
	for _, unit := range resp.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			result.TransactionID = capture.ID
			result.Status = capture.Status
			result.Currency = capture.Amount.CurrencyCode
			amount, err := decimal.NewFromString(capture.Amount.Value)
			if err != nil {
				return nil, fmt.Errorf("parse capture amount %q: %w", capture.Amount.Value, err)
			}
			result.Amount = amount
		}
	}
	return result, nil
}

type transactionsResponse struct {
	TransactionDetails []struct {
		TransactionInfo struct {
			TransactionID             string     `json:"transaction_id"`
			PayPalReferenceID         string     `json:"paypal_reference_id"`
			TransactionStatus         string     `json:"transaction_status"`
			TransactionAmount         amountBody `json:"transaction_amount"`
			TransactionInitiationDate string     `json:"transaction_initiation_date"`
		} `json:"transaction_info"`
	} `json:"transaction_details"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
}

func (c *Client) ListTransactions(ctx context.Context, start, end time.Time) ([]processordomain.LedgerTransaction, error) {
	var out []processordomain.LedgerTransaction
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("start_date", start.UTC().Format(time.RFC3339))
		query.Set("end_date", end.UTC().Format(time.RFC3339))
		query.Set("page_size", "100")
		query.Set("page", strconv.Itoa(page))

		var resp transactionsResponse
		if err := c.do(ctx, http.MethodGet, "/v1/reporting/transactions?"+query.Encode(), nil, &resp); err != nil {
			return nil, err
		}

		for _, detail := range resp.TransactionDetails {
			info := detail.TransactionInfo
			amount, err := decimal.NewFromString(info.TransactionAmount.Value)
			if err != nil {
				return nil, fmt.Errorf("parse ledger amount %q: %w", info.TransactionAmount.Value, err)
			}
			txn := processordomain.LedgerTransaction{
				TransactionID: info.TransactionID,
				ReferenceID:   info.PayPalReferenceID,
				Status:        info.TransactionStatus,
				Amount:        amount,
				Currency:      info.TransactionAmount.CurrencyCode,
			}
			if capturedAt, err := time.Parse(time.RFC3339, info.TransactionInitiationDate); err == nil {
				txn.CapturedAt = capturedAt
			}
			out = append(out, txn)
		}

		if resp.TotalPages == 0 || page >= resp.TotalPages {
			return out, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", processordomain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("processor request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", processordomain.ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", processordomain.ErrRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
