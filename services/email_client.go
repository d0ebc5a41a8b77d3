package services

import (
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strconv"
	"strings"

	"team-engagement-system/models"
)

// EmailSender is the outbound email contract the dispatcher falls back to
// when push is unavailable. The template name is the notification category.
type EmailSender interface {
	SendTemplate(to, template string, fields map[string]string) error
}

// SMTPEmailClient sends plain-text template emails over SMTP.
type SMTPEmailClient struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPEmailClientFromEnv reads SMTP_* env vars. Missing configuration is
// an error so the caller can decide to run without the email channel.
func NewSMTPEmailClientFromEnv() (*SMTPEmailClient, error) {
	host := os.Getenv("SMTP_HOST")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if host == "" || user == "" || pass == "" || from == "" {
		return nil, errors.New("EMAIL_NOT_CONFIGURED")
	}
	portStr := os.Getenv("SMTP_PORT")
	if portStr == "" {
		portStr = "587"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.New("EMAIL_NOT_CONFIGURED")
	}
	return &SMTPEmailClient{host: host, port: port, user: user, pass: pass, from: from}, nil
}

// SendTemplate renders the category's subject/body and sends a single email.
func (c *SMTPEmailClient) SendTemplate(to, template string, fields map[string]string) error {
	subject, body, err := renderEmail(template, fields)
	if err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + c.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	auth := smtp.PlainAuth("", c.user, c.pass, c.host)
	return smtp.SendMail(addr, auth, c.from, []string{to}, []byte(msg))
}

func renderEmail(template string, f map[string]string) (subject, body string, err error) {
	switch template {
	case models.NotificationCategorySessionStarted:
		subject = fmt.Sprintf("%s is live — game day!", f["team_name"])
		body = fmt.Sprintf(
			"The live session for %s has started.\n\n%s\n\nOpen the app to send taps and shout-outs:\n%s",
			f["team_name"], f["athlete_line"], f["link"])

	case models.NotificationCategoryPreGameReminder:
		subject = fmt.Sprintf("%s plays soon", f["team_name"])
		body = fmt.Sprintf(
			"%s starts at %s. The live session opens 15 minutes before kickoff.\n\n%s",
			f["event_title"], f["start_time"], f["link"])

	case models.NotificationCategoryDirectMessage:
		subject = fmt.Sprintf("New message from %s", f["sender_name"])
		body = fmt.Sprintf("%s sent you a message:\n\n%s\n\nReply in the app:\n%s",
			f["sender_name"], f["preview"], f["link"])

	case models.NotificationCategoryTeamChat:
		subject = fmt.Sprintf("New activity in %s team chat", f["team_name"])
		body = fmt.Sprintf("%s posted in the team chat:\n\n%s\n\n%s",
			f["sender_name"], f["preview"], f["link"])

	case models.NotificationCategoryNewFollower:
		subject = "You have a new supporter"
		body = fmt.Sprintf("%s is now following you on %s.\n\n%s",
			f["follower_name"], f["team_name"], f["link"])

	case models.NotificationCategoryHype:
		subject = fmt.Sprintf("You earned %s!", f["badge_name"])
		body = fmt.Sprintf("Your cheering paid off — you unlocked %s and its theme.\n\n%s",
			f["badge_name"], f["link"])

	default:
		return "", "", fmt.Errorf("unknown email template %q", template)
	}
	return subject, body, nil
}
