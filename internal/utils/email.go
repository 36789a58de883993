package utils

import (
	"bytes"
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"marketplace_back_end/internal/config"
)

// Attachment est une pièce jointe d'e-mail.
type Attachment struct {
	Name string
	Data []byte
}

// Mailer envoie des e-mails HTML.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error
}

// NewMailer renvoie un client SMTP, ou un mailer qui journalise seulement
// quand SMTP_HOST n'est pas configuré.
func NewMailer(cfg config.SMTP, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		logger.Warn("⚠️ SMTP non configuré, les e-mails seront seulement journalisés")
		return &LogMailer{logger: logger}
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

type SMTPMailer struct {
	cfg    config.SMTP
	logger *zap.Logger
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return errors.Wrap(err, "set from")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "set to")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	for _, a := range attachments {
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return errors.Wrap(err, "smtp client")
	}

	m.logger.Debug("📤 Envoi de l'e-mail", zap.String("to", to), zap.String("subject", subject))
	return errors.Wrap(client.DialAndSendWithContext(ctx, msg), "send mail")
}

// LogMailer remplace le SMTP en développement.
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string, attachments ...Attachment) error {
	m.logger.Info("📧 E-mail (non envoyé)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("attachments", len(attachments)),
	)
	return nil
}

// SendAsync envoie l'e-mail en arrière-plan ; un échec est seulement journalisé.
func SendAsync(m Mailer, logger *zap.Logger, email Email, to string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Send(ctx, to, email.Subject, email.HTML); err != nil {
			logger.Error("❌ Erreur envoi e-mail", zap.String("to", to), zap.String("subject", email.Subject), zap.Error(err))
			return
		}
		logger.Info("📧 E-mail envoyé", zap.String("to", to), zap.String("subject", email.Subject))
	}()
}
