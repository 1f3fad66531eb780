package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"grievance/models"
)

// Sender is the interface for notification senders
type Sender interface {
	Send(ctx context.Context, notification *models.Notification) error
	Channel() models.NotificationChannel
	Validate(notification *models.Notification) error
}

const (
	sendGridURL        = "https://api.sendgrid.com/v3/mail/send"
	whatsAppGraphURL   = "https://graph.facebook.com/v19.0"
	telegramAPIURL     = "https://api.telegram.org"
	maxSendGridRetries = 3
)

// EmailConfig configures the SendGrid sender. ShadowAddress, when set, is
// the only recipient ever used (pilot shadow mode).
type EmailConfig struct {
	APIKey        string
	FromEmail     string
	FromName      string
	ShadowAddress string
	BaseURL       string
	RetryDelay    time.Duration
	Client        *http.Client
}

// EmailSender sends email through SendGrid. Without an API key it is a no-op.
type EmailSender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	shadowAddr string
	url        string
	retryDelay time.Duration
	client     *http.Client
}

// NewEmailSender creates an email sender
func NewEmailSender(cfg EmailConfig) *EmailSender {
	s := &EmailSender{
		apiKey:     cfg.APIKey,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		shadowAddr: cfg.ShadowAddress,
		url:        cfg.BaseURL,
		retryDelay: cfg.RetryDelay,
		client:     cfg.Client,
	}
	if s.fromEmail == "" {
		s.fromEmail = "noreply@grievance.local"
	}
	if s.fromName == "" {
		s.fromName = "Grievance Desk"
	}
	if s.url == "" {
		s.url = sendGridURL
	}
	if s.retryDelay <= 0 {
		s.retryDelay = time.Second
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	return s
}

// Channel returns the email channel type
func (s *EmailSender) Channel() models.NotificationChannel {
	return models.ChannelEmail
}

// Validate validates email notification
func (s *EmailSender) Validate(notification *models.Notification) error {
	if notification.Recipient == "" || !strings.Contains(notification.Recipient, "@") {
		return ErrInvalidRecipient
	}
	return nil
}

// Send sends an email. In shadow mode the recipient is forced to the shadow address.
func (s *EmailSender) Send(ctx context.Context, notification *models.Notification) error {
	if s.shadowAddr != "" {
		notification.Recipient = s.shadowAddr
	}
	if err := s.Validate(notification); err != nil {
		return err
	}
	if s.apiKey == "" {
		log.Printf("[NOTIFY] email disabled, dropping %s for %s", notification.Kind, notification.ComplaintID)
		return nil
	}
	return s.sendViaSendGrid(ctx, notification)
}

func (s *EmailSender) sendViaSendGrid(ctx context.Context, n *models.Notification) error {
	body := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]interface{}{{"email": n.Recipient}}},
		},
		"from":    map[string]string{"email": s.fromEmail, "name": s.fromName},
		"subject": n.Subject,
		"content": []map[string]string{{"type": "text/plain", "value": n.Body}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSendGridRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &NotificationError{Message: "email cancelled", Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * s.retryDelay):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sendgrid status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return &NotificationError{Message: "email not delivered", Err: lastErr}
}

// WhatsAppConfig configures the WhatsApp Cloud API sender
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	Client        *http.Client
}

// WhatsAppSender sends text messages through the WhatsApp Cloud API
type WhatsAppSender struct {
	token   string
	phoneID string
	baseURL string
	client  *http.Client
}

// NewWhatsAppSender creates a new WhatsApp sender
func NewWhatsAppSender(cfg WhatsAppConfig) *WhatsAppSender {
	s := &WhatsAppSender{token: cfg.Token, phoneID: cfg.PhoneNumberID, baseURL: cfg.BaseURL, client: cfg.Client}
	if s.baseURL == "" {
		s.baseURL = whatsAppGraphURL
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	return s
}

// Channel returns the WhatsApp channel type
func (s *WhatsAppSender) Channel() models.NotificationChannel {
	return models.ChannelWhatsApp
}

// Validate validates WhatsApp notification. Recipients are E.164 numbers.
func (s *WhatsAppSender) Validate(notification *models.Notification) error {
	phone := strings.TrimPrefix(notification.Recipient, "+")
	if len(phone) < 8 {
		return ErrInvalidRecipient
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return ErrInvalidRecipient
		}
	}
	return nil
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

// Send posts a text message
func (s *WhatsAppSender) Send(ctx context.Context, notification *models.Notification) error {
	if err := s.Validate(notification); err != nil {
		return err
	}

	text := notification.Body
	if notification.Subject != "" {
		text = "*" + notification.Subject + "*\n\n" + text
	}
	payload, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(notification.Recipient, "+"),
		Type:             "text",
		Text:             whatsAppText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &NotificationError{Message: "whatsapp request failed", Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NotificationError{Message: fmt.Sprintf("whatsapp status %d", resp.StatusCode), Err: fmt.Errorf("%s", body)}
	}
	return nil
}

// TelegramConfig configures the Telegram Bot API sender
type TelegramConfig struct {
	BotToken string
	BaseURL  string
	Client   *http.Client
}

// TelegramSender posts admin alerts to a Telegram chat
type TelegramSender struct {
	botToken string
	baseURL  string
	client   *http.Client
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(cfg TelegramConfig) *TelegramSender {
	s := &TelegramSender{botToken: cfg.BotToken, baseURL: cfg.BaseURL, client: cfg.Client}
	if s.baseURL == "" {
		s.baseURL = telegramAPIURL
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	return s
}

// Channel returns the Telegram channel type
func (s *TelegramSender) Channel() models.NotificationChannel {
	return models.ChannelTelegram
}

// Validate validates Telegram notification. Recipient is the chat id.
func (s *TelegramSender) Validate(notification *models.Notification) error {
	if notification.Recipient == "" {
		return ErrInvalidRecipient
	}
	return nil
}

// Send posts an HTML message to the chat
func (s *TelegramSender) Send(ctx context.Context, notification *models.Notification) error {
	if err := s.Validate(notification); err != nil {
		return err
	}
	text := htmlEscape(notification.Body)
	if notification.Subject != "" {
		text = "<b>" + htmlEscape(notification.Subject) + "</b>\n" + text
	}
	_, err := s.doRequest(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    notification.Recipient,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}

// doRequest calls a Bot API method and checks the "ok" flag of the reply
func (s *TelegramSender) doRequest(ctx context.Context, method string, payload interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NotificationError{Message: "telegram request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if ok, exists := result["ok"].(bool); !exists || !ok {
		return nil, &NotificationError{Message: fmt.Sprintf("telegram API error: %v", result["description"])}
	}
	return result, nil
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}

// Errors
var (
	ErrInvalidRecipient   = &NotificationError{Message: "invalid recipient"}
	ErrUnsupportedChannel = &NotificationError{Message: "unsupported channel"}
	ErrNotRunning         = &NotificationError{Message: "dispatcher not running"}
)

// NotificationError represents a notification error
type NotificationError struct {
	Message string
	Err     error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
