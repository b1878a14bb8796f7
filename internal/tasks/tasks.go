package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"mailcanvas/backend/internal/config"
	"mailcanvas/backend/internal/email"
	"mailcanvas/backend/internal/services"
)

// TypeEmailSimulate is the task type for simulated template deliveries
// enqueued by POST /api/templates/send.
const TypeEmailSimulate = "email:simulate"

// EmailSimulatePayload is the JSON payload of an email:simulate task.
type EmailSimulatePayload struct {
	TemplateID string `json:"template_id"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
}

// NewEmailSimulateTask builds the asynq task for a simulated delivery.
func NewEmailSimulateTask(templateID, recipient, subject string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailSimulatePayload{
		TemplateID: templateID,
		Recipient:  recipient,
		Subject:    subject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email simulate payload: %w", err)
	}
	return asynq.NewTask(TypeEmailSimulate, payload), nil
}

// NewClient creates an asynq client sharing the Redis connection settings of
// the given client.
func NewClient(rdb *redis.Client) *asynq.Client {
	opt := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
}

// TaskProcessor handles background task processing. It holds the
// dependencies needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	templateService services.ITemplateService
}

// NewTaskProcessor creates a new TaskProcessor.
func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, templateService services.ITemplateService) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		templateService: templateService,
	}
}

// HandleEmailSimulateTask renders the stored template into a full email
// message and writes it through the configured sender sink. No real mailbox
// is reached unless SMTP is explicitly configured.
func (p *TaskProcessor) HandleEmailSimulateTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailSimulatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email simulate payload: %v: %w", err, asynq.SkipRetry)
	}

	template, err := p.templateService.GetTemplateByID(ctx, payload.TemplateID)
	if err != nil {
		// A template deleted between enqueue and processing is not worth
		// retrying; other store errors are transient and retried.
		if errors.Is(err, services.ErrTemplateNotFound) || errors.Is(err, services.ErrInvalidTemplateID) {
			log.Printf("Skipping simulated delivery to %s: %v", payload.Recipient, err)
			return fmt.Errorf("template %s unavailable: %w", payload.TemplateID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load template %s: %w", payload.TemplateID, err)
	}

	subject := payload.Subject
	if subject == "" {
		subject = fmt.Sprintf("Your email from %s", p.cfg.AppName)
	}

	rawMessage := BuildRawMessage(p.cfg.SmtpFromAddress, payload.Recipient, subject, template.HTML)
	if err := p.emailSender.Send(ctx, []string{payload.Recipient}, subject, rawMessage); err != nil {
		return fmt.Errorf("failed to write simulated email for template %s: %w", payload.TemplateID, err)
	}

	log.Printf("Simulated delivery of template %s to %s (%d bytes of HTML)",
		payload.TemplateID, payload.Recipient, len(template.HTML))
	return nil
}

// BuildRawMessage assembles a complete HTML email message, headers included.
func BuildRawMessage(from, to, subject, html string) []byte {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		from, to, subject)
	return append([]byte(headers), html...)
}

// SetupServer creates the asynq server and mux processing simulated
// deliveries.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	opt := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{"default": 1},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailSimulate, processor.HandleEmailSimulateTask)

	return srv, mux
}
