package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/config"
	"github.com/noah-isme/doc-control-api/pkg/jobs"
)

// Channel names.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const notificationJobType = "notification"

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// NotificationChannel delivers a message to one recipient.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, recipient *models.User, msg Message) error
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel sends mail through an SMTP relay.
type EmailChannel struct {
	from   string
	client mailSender
}

// NewEmailChannel builds the email channel, or a logging mock when configured.
func NewEmailChannel(cfg config.NotificationConfig, logger *zap.Logger) (NotificationChannel, error) {
	if cfg.EmailMock {
		return NewMockChannel(ChannelEmail, logger), nil
	}
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &EmailChannel{from: cfg.From, client: client}, nil
}

// Name implements NotificationChannel.
func (c *EmailChannel) Name() string { return ChannelEmail }

// Send implements NotificationChannel. Recipients without an address are skipped.
func (c *EmailChannel) Send(ctx context.Context, recipient *models.User, msg Message) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return nil
	}
	m, err := c.compose(recipient, msg)
	if err != nil {
		return err
	}
	if err := c.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient.Email, err)
	}
	return nil
}

func (c *EmailChannel) compose(recipient *models.User, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("mail sender %q: %w", c.from, err)
	}
	if err := m.To(recipient.Email); err != nil {
		return nil, fmt.Errorf("mail recipient %q: %w", recipient.Email, err)
	}
	// Subjects carry user supplied file names; keep them on one line.
	m.Subject(strings.Join(strings.Fields(msg.Subject), " "))
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// SentMessage is a delivery captured by MockChannel.
type SentMessage struct {
	RecipientID string
	Message     Message
}

// MockChannel logs deliveries instead of sending them. It stands in for the
// SMS provider and for email in development.
type MockChannel struct {
	name   string
	logger *zap.Logger

	mu   sync.Mutex
	sent []SentMessage
}

// NewMockChannel constructs a MockChannel.
func NewMockChannel(name string, logger *zap.Logger) *MockChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockChannel{name: name, logger: logger}
}

// Name implements NotificationChannel.
func (c *MockChannel) Name() string { return c.name }

// Send implements NotificationChannel.
func (c *MockChannel) Send(_ context.Context, recipient *models.User, msg Message) error {
	c.mu.Lock()
	c.sent = append(c.sent, SentMessage{RecipientID: recipient.ID, Message: msg})
	c.mu.Unlock()
	c.logger.Info("mock notification sent",
		zap.String("channel", c.name),
		zap.String("recipient_id", recipient.ID),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of captured deliveries.
func (c *MockChannel) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, notes []models.Notification)
}

type notificationDelivery struct {
	Notification models.Notification
	Channel      string
}

// NotificationService fans notifications out to channels on a background queue.
// Delivery failures are logged and counted, never returned to the caller.
type NotificationService struct {
	users    recipientLookup
	channels map[string]NotificationChannel
	order    []string
	queue    jobEnqueuer
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(users recipientLookup, channels []NotificationChannel, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{users: users, channels: make(map[string]NotificationChannel), metrics: metrics, logger: logger}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		s.channels[ch.Name()] = ch
		s.order = append(s.order, ch.Name())
	}
	return s
}

// AttachQueue routes deliveries through q. Without a queue deliveries run inline.
func (s *NotificationService) AttachQueue(q jobEnqueuer) {
	s.queue = q
}

// Dispatch schedules every notification on every configured channel.
func (s *NotificationService) Dispatch(ctx context.Context, notes []models.Notification) {
	if s == nil {
		return
	}
	for _, note := range notes {
		if note.RecipientID == "" {
			continue
		}
		for _, name := range s.order {
			delivery := notificationDelivery{Notification: note, Channel: name}
			if s.queue == nil {
				if err := s.deliver(ctx, delivery); err != nil {
					s.logger.Warn("notification delivery failed", zap.String("channel", name), zap.String("recipient_id", note.RecipientID), zap.Error(err))
				}
				continue
			}
			job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: delivery}
			if err := s.queue.TryEnqueue(job); err != nil {
				s.metrics.RecordNotification(name, false)
				s.logger.Warn("notification dropped", zap.String("channel", name), zap.String("kind", string(note.Kind)), zap.String("recipient_id", note.RecipientID), zap.Error(err))
			}
		}
	}
}

// HandleJob is the queue handler. Returned errors trigger a retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	delivery, ok := job.Payload.(notificationDelivery)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	return s.deliver(ctx, delivery)
}

// OnGiveUp records a delivery that exhausted its retries.
func (s *NotificationService) OnGiveUp(job jobs.Job, err error) {
	delivery, ok := job.Payload.(notificationDelivery)
	if !ok {
		return
	}
	s.logger.Error("notification abandoned",
		zap.String("channel", delivery.Channel),
		zap.String("kind", string(delivery.Notification.Kind)),
		zap.String("recipient_id", delivery.Notification.RecipientID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}

func (s *NotificationService) deliver(ctx context.Context, delivery notificationDelivery) error {
	ch, ok := s.channels[delivery.Channel]
	if !ok {
		return nil
	}
	recipient, err := s.users.FindByID(ctx, delivery.Notification.RecipientID)
	if err != nil {
		s.metrics.RecordNotification(delivery.Channel, false)
		return fmt.Errorf("load recipient %s: %w", delivery.Notification.RecipientID, err)
	}
	if err := ch.Send(ctx, recipient, RenderNotification(delivery.Notification)); err != nil {
		s.metrics.RecordNotification(delivery.Channel, false)
		return err
	}
	s.metrics.RecordNotification(delivery.Channel, true)
	return nil
}

// RenderNotification builds the subject and body for a notification.
func RenderNotification(n models.Notification) Message {
	p := n.Payload
	doc := fmt.Sprintf("%s %s v%s", p["file_number"], p["file_name"], p["version"])
	switch n.Kind {
	case models.NotifyApprovalPending:
		return Message{
			Subject: "[Approval] " + doc + " awaits your approval",
			Body:    fmt.Sprintf("Document %s is waiting for your decision at step %s (%s).", doc, p["step"], p["role"]),
		}
	case models.NotifyApprovalPassed:
		return Message{
			Subject: "[Approved] " + doc,
			Body:    fmt.Sprintf("Document %s passed all approval steps.", doc),
		}
	case models.NotifyApprovalRejected:
		body := fmt.Sprintf("Document %s was returned by %s.", doc, p["approver"])
		if c := p["comment"]; c != "" {
			body += "\nReason: " + c
		}
		return Message{Subject: "[Rejected] " + doc, Body: body}
	case models.NotifyDistribution:
		body := fmt.Sprintf("Document %s was distributed to you by %s.", doc, p["distributor"])
		if d := p["effective_date"]; d != "" {
			body += "\nEffective date: " + d
		}
		if note := p["note"]; note != "" {
			body += "\nNote: " + note
		}
		return Message{Subject: "[Distribution] " + doc, Body: body}
	default:
		return Message{Subject: string(n.Kind), Body: doc}
	}
}

func documentPayload(doc *models.Document) map[string]string {
	return map[string]string{
		"file_number": doc.FileNumber,
		"file_name":   doc.FileName,
		"version":     doc.Version,
	}
}
