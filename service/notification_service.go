package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"grievance/models"
	"grievance/notification"
)

// NotificationLogger records delivery attempts
type NotificationLogger interface {
	CreateNotificationLog(ctx context.Context, entry *models.NotificationLog) error
}

// NotificationConfig holds routing settings for the dispatcher
type NotificationConfig struct {
	// TelegramChatID receives escalation alerts when a Telegram sender is registered
	TelegramChatID string
	// AdminAlertEmail receives escalation alerts otherwise
	AdminAlertEmail string
	Timeout         time.Duration
}

// NotificationService routes notifications to channel senders. It is the
// production Notifier; Notify never returns an error and never panics.
type NotificationService struct {
	senders    map[models.NotificationChannel]notification.Sender
	translator notification.Translator
	logs       NotificationLogger
	clock      Clock
	config     NotificationConfig

	mu      sync.RWMutex
	running bool
}

// NewNotificationService creates a dispatcher. Only the senders passed in
// are considered configured; translator and logs may be nil.
func NewNotificationService(
	senders []notification.Sender,
	translator notification.Translator,
	logs NotificationLogger,
	clock Clock,
	config NotificationConfig,
) *NotificationService {
	if clock == nil {
		clock = SystemClock{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	byChannel := make(map[models.NotificationChannel]notification.Sender)
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &NotificationService{
		senders:    byChannel,
		translator: translator,
		logs:       logs,
		clock:      clock,
		config:     config,
	}
}

// Start enables delivery
func (s *NotificationService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("notification service already started")
	}
	s.running = true

	channels := make([]string, 0, len(s.senders))
	for ch := range s.senders {
		channels = append(channels, string(ch))
	}
	log.Printf("[NOTIFY] dispatcher started (channels: %v, translation: %t)", channels, s.translator != nil)
	return nil
}

// Stop disables delivery and releases the translator
func (s *NotificationService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.translator != nil {
		if err := s.translator.Close(); err != nil {
			log.Printf("[NOTIFY] failed to close translator: %v", err)
		}
	}
	log.Println("[NOTIFY] dispatcher stopped")
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *NotificationService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Notify renders and sends one notification
func (s *NotificationService) Notify(ctx context.Context, kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) (result models.DispatchResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[NOTIFY] panic while sending %s for %s: %v", kind, complaint.ID, r)
			result = models.DispatchResult{Delivered: false, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if !s.IsRunning() {
		return models.DispatchResult{Delivered: false, Error: notification.ErrNotRunning.Error()}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	sender, recipient, err := s.route(kind, complaint, metadata)
	if err != nil {
		log.Printf("[NOTIFY] no route for %s on %s: %v", kind, complaint.ID, err)
		return models.DispatchResult{Delivered: false, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	subject, body := notification.Render(kind, complaint, metadata)
	if kind == models.KindStatusChanged {
		subject, body = s.localise(ctx, complaint.Reporter.Language, subject, body)
	}

	msg := &models.Notification{
		Kind:        kind,
		ComplaintID: complaint.ID,
		Channel:     sender.Channel(),
		Recipient:   recipient,
		Subject:     subject,
		Body:        body,
	}
	sendErr := sender.Send(ctx, msg)
	s.record(ctx, msg, sendErr)

	result = models.DispatchResult{
		Delivered: sendErr == nil,
		Channel:   msg.Channel,
		Recipient: msg.Recipient,
	}
	if sendErr != nil {
		result.Error = sendErr.Error()
		log.Printf("[NOTIFY] %s for %s via %s failed: %v", kind, complaint.ID, msg.Channel, sendErr)
	}
	return result
}

// route picks the channel and recipient for a notification kind
func (s *NotificationService) route(kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) (notification.Sender, string, error) {
	switch kind {
	case models.KindStatusChanged:
		if wa, ok := s.senders[models.ChannelWhatsApp]; ok && complaint.Reporter.Phone != "" {
			return wa, complaint.Reporter.Phone, nil
		}
		if email, ok := s.senders[models.ChannelEmail]; ok && complaint.Reporter.Email != "" {
			return email, complaint.Reporter.Email, nil
		}
		return nil, "", notification.ErrInvalidRecipient

	case models.KindAssigned:
		email, ok := s.senders[models.ChannelEmail]
		if !ok {
			return nil, "", notification.ErrUnsupportedChannel
		}
		if metadata[models.MetaRecipientEmail] == "" {
			return nil, "", notification.ErrInvalidRecipient
		}
		return email, metadata[models.MetaRecipientEmail], nil

	case models.KindEscalated:
		if tg, ok := s.senders[models.ChannelTelegram]; ok && s.config.TelegramChatID != "" {
			return tg, s.config.TelegramChatID, nil
		}
		if email, ok := s.senders[models.ChannelEmail]; ok && s.config.AdminAlertEmail != "" {
			return email, s.config.AdminAlertEmail, nil
		}
		return nil, "", notification.ErrUnsupportedChannel
	}
	return nil, "", notification.ErrUnsupportedChannel
}

// localise translates citizen text, falling back to English on failure
func (s *NotificationService) localise(ctx context.Context, lang, subject, body string) (string, string) {
	if s.translator == nil || !notification.NeedsTranslation(lang) {
		return subject, body
	}
	translatedSubject, err := s.translator.Translate(ctx, subject, lang)
	if err != nil {
		log.Printf("[NOTIFY] translation to %s failed, sending English: %v", lang, err)
		return subject, body
	}
	translatedBody, err := s.translator.Translate(ctx, body, lang)
	if err != nil {
		log.Printf("[NOTIFY] translation to %s failed, sending English: %v", lang, err)
		return subject, body
	}
	return translatedSubject, translatedBody
}

func (s *NotificationService) record(ctx context.Context, msg *models.Notification, sendErr error) {
	if s.logs == nil {
		return
	}
	entry := &models.NotificationLog{
		Kind:        msg.Kind,
		ComplaintID: msg.ComplaintID,
		Channel:     msg.Channel,
		Recipient:   msg.Recipient,
		Status:      models.NotificationStatusSent,
		CreatedAt:   s.clock.Now(),
	}
	if sendErr != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
	}
	// the send context may already be spent
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.logs.CreateNotificationLog(logCtx, entry); err != nil {
		log.Printf("[NOTIFY] failed to record delivery for %s: %v", msg.ComplaintID, err)
	}
}
