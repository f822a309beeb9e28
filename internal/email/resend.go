package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// resendClient is the Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	fromAddr   string // e.g. "hello@findmyflow.app"
	fromName   string // e.g. "Find My Flow"
	baseURL    string // results link base, e.g. "https://findmyflow.app"
	endpoint   string
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName, baseURL string) Sender {
	return &resendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: resendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

func (c *resendClient) SendResultsReady(ctx context.Context, p ResultsReadyParams) error {
	subject := "Your Find My Flow results are ready"
	if p.FlowTitle != "" {
		subject = fmt.Sprintf("%s: your results are ready", p.FlowTitle)
	}
	resultsURL := fmt.Sprintf("%s/results/%s", c.baseURL, p.AccessToken)
	return c.send(ctx, p.To, subject, resultsReadyHTML(p.FlowTitle, p.OfferName, resultsURL))
}

func (c *resendClient) SendReceipt(ctx context.Context, p ReceiptParams) error {
	amount := formatAmount(p.AmountCents, p.Currency)
	return c.send(ctx, p.To, "Payment received", receiptHTML(p.FlowTitle, amount))
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, to, subject, body string) error {
	reqBody := resendRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr),
		To:      []string{to},
		Subject: subject,
		HTML:    body,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}
	return nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

func formatAmount(cents int64, currency string) string {
	if strings.EqualFold(currency, "usd") || currency == "" {
		return fmt.Sprintf("$%.2f", float64(cents)/100)
	}
	return fmt.Sprintf("%.2f %s", float64(cents)/100, strings.ToUpper(currency))
}

const footer = `<hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">Find My Flow</p>`

func resultsReadyHTML(flowTitle, offerName, resultsURL string) string {
	match := ""
	if offerName != "" {
		match = fmt.Sprintf(`<p>Your best match is <strong>%s</strong>.</p>`, html.EscapeString(offerName))
	}
	title := "your flow"
	if flowTitle != "" {
		title = html.EscapeString(flowTitle)
	}
	link := html.EscapeString(resultsURL)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Your results are ready</h2>
  <p>Thanks for working through %s.</p>
  %s
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      See your results
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    If the button does not work, copy this URL:<br>
    <a href="%s" style="color: #6b7280;">%s</a>
  </p>
  %s
</body>
</html>`, title, match, link, link, link, footer)
}

func receiptHTML(flowTitle, amount string) string {
	title := "your flow"
	if flowTitle != "" {
		title = html.EscapeString(flowTitle)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Payment confirmed</h2>
  <p>We received your payment of <strong>%s</strong> for %s. It is unlocked
  and ready whenever you are.</p>
  <p style="color: #6b7280; font-size: 14px;">Questions? Just reply to this email.</p>
  %s
</body>
</html>`, amount, title, footer)
}
