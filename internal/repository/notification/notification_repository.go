package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"garageBooking/pkg/logger"
	"garageBooking/pkg/tracing"

	"github.com/pobyzaarif/goshortcute"
	"go.opentelemetry.io/otel/attribute"
)

type MailjetConfig struct {
	MailjetBaseURL           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
}

type MailjetRepository struct {
	mailjetConfig MailjetConfig
	client        *http.Client
}

func NewMailjetRepository(cfg MailjetConfig) *MailjetRepository {
	return &MailjetRepository{
		mailjetConfig: cfg,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

type payloadSendEmail struct {
	Messages []Messages `json:"Messages"`
}

type From struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type To struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type Messages struct {
	From     From   `json:"From"`
	To       []To   `json:"To"`
	Subject  string `json:"Subject"`
	TextPart string `json:"TextPart"`
	HTMLPart string `json:"HTMLPart"`
}

var (
	lineBreaks = regexp.MustCompile(`(?i)<\s*/?\s*br\s*/?\s*>`)
	tags       = regexp.MustCompile(`<[^>]*>`)
)

// plainText renders an HTML email body for the TextPart.
func plainText(body string) string {
	body = lineBreaks.ReplaceAllString(body, "\n")
	body = tags.ReplaceAllString(body, "")
	return strings.TrimSpace(html.UnescapeString(body))
}

func (r *MailjetRepository) SendEmail(ctx context.Context, toName, toEmail, subject, message string) (err error) {
	ctx, span := tracing.Start(ctx, "mailjet.send", attribute.String("email.subject", subject))
	defer func() { tracing.End(span, err) }()

	url := r.mailjetConfig.MailjetBaseURL + "/v3.1/send"

	payload := payloadSendEmail{
		Messages: []Messages{{
			To: []To{{
				Email: toEmail,
				Name:  toName,
			}},
			From: From{
				Email: r.mailjetConfig.MailjetSenderEmail,
				Name:  r.mailjetConfig.MailjetSenderName,
			},
			Subject:  subject,
			TextPart: plainText(message),
			HTMLPart: message,
		}},
	}

	payloadByte, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadByte))
	if err != nil {
		return err
	}

	buildBasicAuth := goshortcute.StringtoBase64Encode(r.mailjetConfig.MailjetBasicAuthUsername + ":" + r.mailjetConfig.MailjetBasicAuthPassword)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Basic "+buildBasicAuth)

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(res.Body)
	logger.Warn("mailjet rejected message", "status", res.StatusCode, "body", string(bodyBytes))

	return fmt.Errorf("mailer service return negative response %v", res.StatusCode)
}
