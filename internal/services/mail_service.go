package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/mail.v2"
)

//go:embed templates/*.html
var emailTemplates embed.FS

var ErrMailDisabled = errors.New("mail service disabled")

// Mailer delivers one rendered email job.
type Mailer interface {
	Send(ctx context.Context, job EmailJob) error
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type MailService struct {
	cfg       MailConfig
	enabled   bool
	templates *template.Template
	dialer    *mail.Dialer
	log       logrus.FieldLogger
}

func NewMailService(cfg MailConfig, log logrus.FieldLogger) (*MailService, error) {
	tmpl, err := template.New("email").Option("missingkey=zero").ParseFS(emailTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	enabled := cfg.Host != "" && cfg.Port != 0 && cfg.Username != "" && cfg.Password != "" && cfg.From != ""
	if !enabled {
		log.Warn("MailService disabled: missing SMTP configuration")
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 10 * time.Second

	return &MailService{
		cfg:       cfg,
		enabled:   enabled,
		templates: tmpl,
		dialer:    d,
		log:       log,
	}, nil
}

func (s *MailService) Enabled() bool {
	return s.enabled
}

// Render executes the job's template, e.g. "new_quote" → templates/new_quote.html.
func (s *MailService) Render(job EmailJob) (string, error) {
	name := job.Template + ".html"
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, job.Data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Message builds the MIME message without sending it.
func (s *MailService) Message(job EmailJob) (*mail.Message, error) {
	body, err := s.Render(job)
	if err != nil {
		return nil, err
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, "Gulfquotes")
	if job.Name != "" {
		m.SetAddressHeader("To", job.To, job.Name)
	} else {
		m.SetHeader("To", job.To)
	}
	m.SetHeader("Subject", job.Subject)
	if tags := formatTags(job.Tags); tags != "" {
		m.SetHeader("X-Tags", tags)
	}
	m.SetBody("text/html", body)
	return m, nil
}

func (s *MailService) Send(ctx context.Context, job EmailJob) error {
	if !s.enabled {
		return ErrMailDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.Message(job)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", job.To, err)
	}
	s.log.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("email sent")
	return nil
}

// formatTags renders tags as "k=v,k=v" in key order.
func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}
