package mailer

import (
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is used to build links back to the application.
	BaseURL string
}

// Mailer sends the outbound notifications of the helpdesk.
type Mailer interface {
	SendTicketAssigned(to string, ticketID uint, ticketNumber, assigneeName string) error
}

type smtpMailer struct {
	cfg    Config
	dialer *gomail.Dialer
}

// New returns an SMTP mailer, or a mailer that only logs when no host is set.
func New(cfg Config, log *slog.Logger) Mailer {
	if cfg.Host == "" {
		return &logMailer{log: log}
	}
	return &smtpMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *smtpMailer) SendTicketAssigned(to string, ticketID uint, ticketNumber, assigneeName string) error {
	ticketURL := fmt.Sprintf("%s/ticket/%d", m.cfg.BaseURL, ticketID)

	subject := fmt.Sprintf("Ticket %s assigned to you", ticketNumber)
	plainBody, htmlBody := ticketAssignedBodies(assigneeName, ticketNumber, ticketURL)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send assignment email: %w", err)
	}
	return nil
}

// ticketAssignedBodies renders the plain and HTML parts of an assignment
// email. Values are escaped in the HTML part.
func ticketAssignedBodies(assigneeName, ticketNumber, ticketURL string) (string, string) {
	plainBody := fmt.Sprintf(`Hello %s,

Ticket %s has been assigned to you.
%s
`, assigneeName, ticketNumber, ticketURL)

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<p>Hello %s,</p>
			<p>Ticket <strong>%s</strong> has been assigned to you.</p>
			<p><a href="%s">Open the ticket</a></p>
		</body>
		</html>
	`, html.EscapeString(assigneeName), html.EscapeString(ticketNumber), html.EscapeString(ticketURL))

	return plainBody, htmlBody
}

type logMailer struct {
	log *slog.Logger
}

func (m *logMailer) SendTicketAssigned(to string, ticketID uint, ticketNumber, assigneeName string) error {
	m.log.Info("smtp not configured, assignment email skipped",
		"to", to, "ticket_id", ticketID, "ticket_number", ticketNumber, "assignee", assigneeName)
	return nil
}
