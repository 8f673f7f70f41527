package email

import (
	"fmt"
	"strings"
	"text/template"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(`{{.AppName}} - Confirm your email

Hello{{if .Username}} {{.Username}}{{end}},

Please confirm your email address{{if .Link}} by opening:

    {{.Link}}
{{else}} with this code:

    {{.Token}}
{{end}}
If you did not create an account, you can ignore this email.
`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`{{.AppName}} - Your account

Hello {{.Username}},

An account has been created for you.
{{if .Password}}
Your temporary password is:

    {{.Password}}

Please change it after your first login.
{{end}}`))

	resetTmpl = template.Must(template.New("reset").Parse(`{{.AppName}} - Password Reset

Hello{{if .Username}} {{.Username}}{{end}},

We received a request to reset your password.
{{if .Link}}
Open the link below to choose a new one:

    {{.Link}}
{{else}}
Your password reset code is:

    {{.Token}}
{{end}}
This code will expire in {{.ExpiresInMin}} minutes.

If you didn't request a password reset, you can safely ignore this email.
{{if .SupportEmail}}If you need help, contact us at {{.SupportEmail}}.
{{end}}`))
)

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func verificationEmail(data VerificationEmailData) (EmailData, error) {
	body, err := render(verificationTmpl, data)
	if err != nil {
		return EmailData{}, err
	}
	return EmailData{To: data.To, Subject: "Confirm your email address", TextBody: body}, nil
}

func welcomeEmail(data WelcomeEmailData) (EmailData, error) {
	body, err := render(welcomeTmpl, data)
	if err != nil {
		return EmailData{}, err
	}
	return EmailData{To: data.To, Subject: fmt.Sprintf("Welcome to %s", data.AppName), TextBody: body}, nil
}

func passwordResetEmail(data PasswordResetEmailData) (EmailData, error) {
	body, err := render(resetTmpl, data)
	if err != nil {
		return EmailData{}, err
	}
	return EmailData{To: data.To, Subject: "Password reset", TextBody: body}, nil
}
