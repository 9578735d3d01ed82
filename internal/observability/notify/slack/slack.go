package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/senpy/sen-dashboard/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers report notifications to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	client     *http.Client
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   notify.Fallback(strings.TrimSpace(cfg.Username), "sen-dashboard"),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// SendReport posts a formatted message to Slack.
func (c *Client) SendReport(ctx context.Context, payload notify.ReportPayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.Retry(ctx, c.retryLimit, func(ctx context.Context) error {
		return c.post(ctx, body)
	})
}

func (c *Client) formatMessage(payload notify.ReportPayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	text := strings.Builder{}
	writeSlackHeader(&text, payload)
	appendSlackDetails(&text, payload)
	writeSlackTimestamp(&text, timestamp)

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return notify.ResponseError(resp, "slack webhook")
	}
	return notify.DrainResponse(resp, "slack")
}

func writeSlackHeader(text *strings.Builder, payload notify.ReportPayload) {
	text.WriteString("*Reporte ciudadano*")
	if payload.DisplayID != "" {
		text.WriteString(" `")
		text.WriteString(payload.DisplayID)
		text.WriteByte('`')
	}
	if payload.TypeLabel != "" {
		text.WriteString(" (")
		text.WriteString(escapeSlackText(payload.TypeLabel))
		text.WriteByte(')')
	}
	text.WriteByte('\n')
}

func appendSlackDetails(text *strings.Builder, payload notify.ReportPayload) {
	affected := ""
	if payload.AffectedPeople != nil {
		affected = strconv.Itoa(*payload.AffectedPeople)
	}
	fields := []struct {
		label string
		value string
	}{
		{"Severidad", notify.Fallback(payload.SeverityLabel, payload.Severity)},
		{"Título", escapeSlackText(payload.Title)},
		{"Ubicación", formatLocation(payload)},
		{"Personas afectadas", affected},
		{"Reportado por", escapeSlackText(strings.TrimSpace(payload.ReporterName + " " + payload.ReporterPhone))},
		{"Descripción", escapeSlackText(payload.Description)},
		{"Panel", formatLink(payload.ReportsURL, "Ver reportes")},
	}
	for _, field := range fields {
		appendSlackField(text, field.label, field.value)
	}
}

// formatLocation renders the address, linked to a map when coordinates are known.
func formatLocation(payload notify.ReportPayload) string {
	address := escapeSlackText(strings.TrimSpace(payload.Address))
	if payload.Lat == nil || payload.Lng == nil {
		return address
	}
	lat := strconv.FormatFloat(*payload.Lat, 'f', 5, 64)
	lng := strconv.FormatFloat(*payload.Lng, 'f', 5, 64)
	q := url.Values{"mlat": {lat}, "mlon": {lng}}
	link := "https://www.openstreetmap.org/?" + q.Encode()
	label := address
	if label == "" {
		label = lat + ", " + lng
	}
	return fmt.Sprintf("<%s|%s>", link, label)
}

func formatLink(raw, label string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("<%s|%s>", u.String(), label)
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func writeSlackTimestamp(text *strings.Builder, timestamp time.Time) {
	text.WriteString("• Fecha: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))
}
