package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
)

// PayPalGateway is the alternative rail: the buyer pre-authorizes a payment
// on the provider side, and capture looks that payment up by its external
// order id and records its sale id as the charge reference.
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	log          *logger.Logger
}

func NewPayPalGateway(cfg config.PayPalConfig, client *http.Client, log *logger.Logger) *PayPalGateway {
	return &PayPalGateway{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       client,
		log:          log,
	}
}

type paypalPayment struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Transactions []struct {
		RelatedResources []struct {
			Sale struct {
				ID string `json:"id"`
			} `json:"sale"`
		} `json:"related_resources"`
	} `json:"transactions"`
}

type paypalRefund struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// Capture verifies the pre-authorized payment is approved and returns its
// settlement sale id. MethodToken carries the external payment id.
func (g *PayPalGateway) Capture(ctx context.Context, req CaptureRequest) (string, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return "", marketerr.Providerf("paypal auth failed: %v", err)
	}

	var payment paypalPayment
	endpoint := fmt.Sprintf("%s/v1/payments/payment/%s", g.baseURL, req.MethodToken)
	if err := g.get(ctx, endpoint, token, &payment); err != nil {
		g.log.Error("PAYPAL", fmt.Sprintf("Payment lookup failed for order %s: %v", req.OrderID, err))
		return "", marketerr.Providerf("paypal payment lookup failed: %v", err)
	}

	if payment.State != "approved" {
		g.log.Error("PAYPAL", fmt.Sprintf("Payment %s for order %s not approved: %s", payment.ID, req.OrderID, payment.State))
		return "", marketerr.Providerf("paypal payment not approved: state %s", payment.State)
	}
	if len(payment.Transactions) == 0 || len(payment.Transactions[0].RelatedResources) == 0 {
		return "", marketerr.Providerf("paypal payment %s has no sale", payment.ID)
	}

	saleID := payment.Transactions[0].RelatedResources[0].Sale.ID
	g.log.Info("PAYPAL", fmt.Sprintf("Captured order %s, sale %s", req.OrderID, saleID))
	return saleID, nil
}

// Refund reverses a sale in full.
func (g *PayPalGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return "", marketerr.Providerf("paypal auth failed: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"amount": map[string]string{
			"total":    req.Amount.StringFixed(2),
			"currency": strings.ToUpper(req.Currency),
		},
	})

	endpoint := fmt.Sprintf("%s/v1/payments/sale/%s/refund", g.baseURL, req.ChargeID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", marketerr.Providerf("paypal refund request failed: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.log.Error("PAYPAL", fmt.Sprintf("Refund against sale %s failed: %v", req.ChargeID, err))
		return "", marketerr.Providerf("paypal refund failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", marketerr.Providerf("paypal refund failed: status %d", resp.StatusCode)
	}

	var refund paypalRefund
	if err := json.NewDecoder(resp.Body).Decode(&refund); err != nil {
		return "", marketerr.Providerf("paypal refund response invalid: %v", err)
	}

	g.log.Info("PAYPAL", fmt.Sprintf("Refunded sale %s, refund %s", req.ChargeID, refund.ID))
	return refund.ID, nil
}

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.clientID, g.clientSecret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}
	return body.AccessToken, nil
}

func (g *PayPalGateway) get(ctx context.Context, endpoint, token string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
