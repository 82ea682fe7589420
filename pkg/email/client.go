package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

const brand = "Course Market"

var layout = template.Must(template.New("email").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background: #f9f9f9;">
    <div style="padding: 32px;">
        <div style="max-width: 600px; margin: auto; background: #fff; border-radius: 8px; box-shadow: 0 2px 8px #eee; padding: 32px;">
            <div style="text-align: center; margin-bottom: 24px;">
                <h2 style="color: #2a7ae2; margin: 0;">{{.Brand}}</h2>
            </div>
            <div style="font-size: 16px; color: #333;">
                {{.Content}}
            </div>
            <div style="margin-top: 32px; text-align: center; color: #aaa; font-size: 12px;">
                &copy; {{.Year}} {{.Brand}}. All rights reserved.
            </div>
        </div>
    </div>
</body>
</html>
`))

// Client handles email sending operations.
type Client struct {
	host     string
	port     string
	username string
	password string
	from     string
	secure   bool
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewClient creates a new email client.
func NewClient(host, port, username, password, from string, secure bool) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		secure:   secure,
		send:     smtp.SendMail,
	}
}

// EmailOptions represents the options for sending an email.
type EmailOptions struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendEmail sends an email with HTML content.
func (c *Client) SendEmail(opts EmailOptions) error {
	message := c.buildMessage(opts.To, opts.Subject, c.wrapHTMLTemplate(opts.HTML), opts.Text)

	auth := smtp.PlainAuth("", c.username, c.password, c.host)
	addr := fmt.Sprintf("%s:%s", c.host, c.port)

	if err := c.send(addr, auth, c.from, []string{opts.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (c *Client) wrapHTMLTemplate(content string) string {
	var buf bytes.Buffer
	data := map[string]interface{}{
		"Brand":   brand,
		"Content": template.HTML(content),
		"Year":    time.Now().Year(),
	}
	if err := layout.Execute(&buf, data); err != nil {
		return content
	}
	return buf.String()
}

func (c *Client) buildMessage(to, subject, html, text string) string {
	from := c.from
	if from == "" {
		from = "noreply@example.com"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=\"boundary42\"\r\n\r\n")

	if text != "" {
		msg.WriteString("--boundary42\r\n")
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		msg.WriteString(text + "\r\n")
	}

	msg.WriteString("--boundary42\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(html + "\r\n")
	msg.WriteString("--boundary42--\r\n")

	return msg.String()
}

// SendPasswordReset sends a password reset link. The token expires after one hour.
func (c *Client) SendPasswordReset(to, resetToken, resetURL string) error {
	link := fmt.Sprintf("%s?token=%s", resetURL, resetToken)
	html := fmt.Sprintf(`
		<p>Hello,</p>
		<p>You requested to reset your password. Click the link below to choose a new one:</p>
		<p style="text-align: center; margin: 24px 0;">
			<a href="%s" style="background: #2a7ae2; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">
				Reset Password
			</a>
		</p>
		<p>If you did not request this, please ignore this email.</p>
		<p>This link will expire in 1 hour.</p>
	`, template.HTMLEscapeString(link))

	return c.SendEmail(EmailOptions{
		To:      to,
		Subject: "Password Reset Request",
		HTML:    html,
		Text:    "Reset your password: " + link,
	})
}

// SendWelcome greets a newly registered user.
func (c *Client) SendWelcome(to, userName string) error {
	html := fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>Welcome to %s! Browse the catalog to find your first course, or start publishing your own.</p>
		<p>If you have any questions, feel free to reach out to our support team.</p>
	`, template.HTMLEscapeString(userName), brand)

	return c.SendEmail(EmailOptions{
		To:      to,
		Subject: "Welcome to " + brand + "!",
		HTML:    html,
		Text:    fmt.Sprintf("Hello %s, welcome to %s!", userName, brand),
	})
}

// SendNotification mirrors an in-app notification by mail.
func (c *Client) SendNotification(to, title, message string) error {
	html := fmt.Sprintf(`
		<h3 style="color: #2a7ae2;">%s</h3>
		<p>%s</p>
	`, template.HTMLEscapeString(title), template.HTMLEscapeString(message))

	return c.SendEmail(EmailOptions{
		To:      to,
		Subject: title,
		HTML:    html,
		Text:    message,
	})
}
