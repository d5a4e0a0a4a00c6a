package banking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/resilience"
)

// HTTPClient talks to the ESB over its JSON API with basic auth. A circuit
// breaker short-circuits calls while the ESB is down so dialogue turns fail
// fast instead of holding the user for the full timeout.
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	breaker  *resilience.Breaker
	log      *logger.Logger
}

// NewHTTPClient creates an ESB client with a bounded request timeout.
func NewHTTPClient(baseURL, username, password string, timeout time.Duration, log *logger.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		username: username,
		password: password,
		breaker:  resilience.NewBreaker(resilience.DefaultConfig("esb"), log),
		log:      log,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return err
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrUpstream, err)
		}
		payload = bytes.NewBuffer(data)
	} else {
		payload = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.LogError(err, "esb request failed", "method", method, "path", path)
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("esb non-2xx response", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
		}
	}
	return nil
}

func (c *HTTPClient) AccountLookup(ctx context.Context, accountNumber string) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountNumber, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) Balance(ctx context.Context, accountNumber string) (float64, string, error) {
	var out struct {
		Available float64 `json:"available"`
		Currency  string  `json:"currency"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountNumber+"/balance", nil, &out); err != nil {
		return 0, "", err
	}
	return out.Available, out.Currency, nil
}

func (c *HTTPClient) MiniStatement(ctx context.Context, accountNumber string) ([]StatementEntry, error) {
	var out struct {
		Entries []StatementEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts/"+accountNumber+"/statement", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *HTTPClient) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/transfers", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) ValidateBill(ctx context.Context, biller, reference string) (*Bill, error) {
	var bill Bill
	path := fmt.Sprintf("/billers/%s/bills/%s", biller, reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (c *HTTPClient) PayBill(ctx context.Context, fromAccount string, bill Bill, amount float64) (*Receipt, error) {
	var receipt Receipt
	body := struct {
		FromAccount string  `json:"from_account"`
		Biller      string  `json:"biller"`
		Reference   string  `json:"reference"`
		Amount      float64 `json:"amount"`
	}{fromAccount, bill.Biller, bill.Reference, amount}
	if err := c.do(ctx, http.MethodPost, "/payments", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
