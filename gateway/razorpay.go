package gateway

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go"
)

// RazorpayGateway implements PaymentGateway on the Razorpay SDK.
type RazorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpayGateway builds a gateway client from API credentials.
func NewRazorpayGateway(keyID, keySecret string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials not configured")
	}
	return &RazorpayGateway{client: razorpay.NewClient(keyID, keySecret)}, nil
}

// CreateOrder creates a Razorpay order. Amounts are converted to paise at
// this boundary only.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	data := map[string]interface{}{
		"amount":   int(amount * 100), // Convert to paise
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	resp, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating razorpay order: %w", err)
	}

	orderID, ok := resp["id"].(string)
	if !ok || orderID == "" {
		return nil, fmt.Errorf("razorpay order response missing id")
	}

	return &Order{
		ID:       orderID,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

// FetchPayment fetches the authoritative payment state from Razorpay.
func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	resp, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching razorpay payment: %w", err)
	}
	return paymentFromEntity(resp), nil
}

// OrderPayments lists every payment attempt made against an order.
func (g *RazorpayGateway) OrderPayments(ctx context.Context, orderID string) ([]PaymentDetails, error) {
	resp, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("error listing razorpay order payments: %w", err)
	}

	items, _ := resp["items"].([]interface{})
	payments := make([]PaymentDetails, 0, len(items))
	for _, item := range items {
		entity, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		payments = append(payments, *paymentFromEntity(entity))
	}
	return payments, nil
}

// call runs a blocking SDK call and respects context cancellation. The SDK
// has no context support, so the call is raced against ctx.Done; an
// abandoned call finishes in the background and its result is dropped.
func (g *RazorpayGateway) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		resp map[string]interface{}
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := fn()
		ch <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

// paymentFromEntity maps a Razorpay payment entity to PaymentDetails.
func paymentFromEntity(entity map[string]interface{}) *PaymentDetails {
	p := &PaymentDetails{}
	p.ID, _ = entity["id"].(string)
	p.OrderID, _ = entity["order_id"].(string)
	p.Status, _ = entity["status"].(string)
	p.Currency, _ = entity["currency"].(string)

	// Amount arrives in paise (could be float or int)
	switch v := entity["amount"].(type) {
	case float64:
		p.Amount = v / 100
	case int:
		p.Amount = float64(v) / 100
	case int64:
		p.Amount = float64(v) / 100
	}
	return p
}
