package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttpl "text/template"
)

const welcomeHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Welcome to CarHub</h2>
  <p>An account was created for <strong>{{.Email}}</strong>.</p>
  <p>Your password is: <code style="font-size: 1.2em;">{{.Password}}</code></p>
  <p><a href="{{.LoginURL}}">Sign in</a></p>
</body>
</html>
`

const welcomeText = `Welcome to CarHub

An account was created for {{.Email}}.
Your password is: {{.Password}}

Sign in at {{.LoginURL}}
`

// WelcomeVars are the values rendered into the welcome message.
type WelcomeVars struct {
	Email    string
	Password string
	LoginURL string
}

// WelcomeMailer renders and sends the message carrying a new account's password.
type WelcomeMailer struct {
	sender      Sender
	subject     string
	frontendURL string
	html        *template.Template
	text        *texttpl.Template
}

// NewWelcomeMailer creates a mailer linking to frontendURL + "/login".
func NewWelcomeMailer(sender Sender, subject, frontendURL string) *WelcomeMailer {
	if subject == "" {
		subject = "Welcome"
	}
	return &WelcomeMailer{
		sender:      sender,
		subject:     subject,
		frontendURL: frontendURL,
		html:        template.Must(template.New("welcome_html").Parse(welcomeHTML)),
		text:        texttpl.Must(texttpl.New("welcome_txt").Parse(welcomeText)),
	}
}

// Render returns the HTML and plain text bodies.
func (w *WelcomeMailer) Render(vars WelcomeVars) (string, string, error) {
	var h, t bytes.Buffer
	if err := w.html.Execute(&h, vars); err != nil {
		return "", "", fmt.Errorf("render welcome html: %w", err)
	}
	if err := w.text.Execute(&t, vars); err != nil {
		return "", "", fmt.Errorf("render welcome text: %w", err)
	}
	return h.String(), t.String(), nil
}

// SendWelcome mails password to the new account at to.
func (w *WelcomeMailer) SendWelcome(ctx context.Context, to, password string) error {
	htmlBody, textBody, err := w.Render(WelcomeVars{
		Email:    to,
		Password: password,
		LoginURL: w.frontendURL + "/login",
	})
	if err != nil {
		return err
	}
	return w.sender.Send(ctx, to, w.subject, htmlBody, textBody)
}
