package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	razorpaysdk "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

var (
	errKeyIDRequired  = errors.New("razorpay key id is required")
	errSecretRequired = errors.New("razorpay key secret is required")
)

// Client wraps the Razorpay SDK plus signature verification helpers.
type Client struct {
	api       *razorpaysdk.Client
	keySecret string
}

// Order is the subset of Razorpay's order response the platform consumes.
type Order struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// NewClient initializes the Razorpay SDK once with the configured keys.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errSecretRequired
	}

	api := razorpaysdk.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{api: api, keySecret: keySecret}, nil
}

// CreateOrder opens a gateway order for the given amount. Razorpay wants the
// amount in paise, so the decimal rupee value is shifted two places.
func (c *Client) CreateOrder(amount decimal.Decimal, receipt string, notes map[string]any) (*Order, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("order amount must be positive, got %s", amount)
	}

	data := map[string]any{
		"amount":   amount.Shift(2).IntPart(),
		"currency": "INR",
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	return orderFromResponse(body)
}

// FetchOrder retrieves a gateway order by its Razorpay ID.
func (c *Client) FetchOrder(orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("order id is required")
	}
	body, err := c.api.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch order %s: %w", orderID, err)
	}
	return orderFromResponse(body)
}

// VerifyPaymentSignature checks the HMAC Razorpay attaches to successful
// checkout callbacks (orderID|paymentID signed with the key secret).
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func orderFromResponse(body map[string]any) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay response missing order id")
	}

	order := &Order{ID: id}
	if currency, ok := body["currency"].(string); ok {
		order.Currency = currency
	}
	if status, ok := body["status"].(string); ok {
		order.Status = status
	}
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = decimal.NewFromFloat(amount).Shift(-2)
	case int64:
		order.Amount = decimal.NewFromInt(amount).Shift(-2)
	}
	return order, nil
}
