package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/johnsto/go-passwordless"
)

// transport names registered in New. Dev logs the sign-in link instead of
// emailing it so login works without an SMTP server.
const (
	transportLog   = "Log"
	transportEmail = "Email"
)

func (a *Auth) transport() string {
	if a.Environment == EnvProduction {
		return transportEmail
	}
	return transportLog
}

// Request generates a one-time sign-in code for uid and delivers it to
// recipient over the environment's transport
func (a *Auth) Request(ctx context.Context, uid, recipient string) error {
	return a.pw.RequestToken(ctx, a.transport(), uid, recipient)
}

// Verify burns the sign-in code. A wrong or expired code is a normal outcome
// and comes back as valid=false; only store and transport faults surface as
// errors.
func (a *Auth) Verify(ctx context.Context, uid, code string) (bool, error) {
	valid, err := a.pw.VerifyToken(ctx, uid, code)
	switch err {
	case passwordless.ErrNoResponseWriter, passwordless.ErrNoStore, passwordless.ErrNoTransport, passwordless.ErrNotValidForContext:
		return valid, err
	default:
		return valid, nil
	}
}

const signInText = `Use this code to sign in to %[1]s: %[2]s

Or follow this link: %[3]s

The code expires in %[4]d minutes. If you did not try to sign in to %[1]s, you can ignore this email and nothing will happen.`

const signInHTML = `<!doctype html><html><body>` +
	`<p>Use this code to sign in to %[1]s: <b>%[2]s</b></p>` +
	`<p>Or <a href="%[3]s">sign in with one click</a>.</p>` +
	`<p>The code expires in %[4]d minutes. If you did not try to sign in to %[1]s, you can ignore this email and nothing will happen.</p>` +
	`</body></html>`

func signInComposer(option EmailOption, validity time.Duration) passwordless.ComposerFunc {
	return func(ctx context.Context, token, uid, recipient string, w io.Writer) error {
		link := option.LinkGenerator(uid, token)
		minutes := int(validity.Minutes())

		email := &passwordless.Email{
			Subject: fmt.Sprintf("Sign in to %s", option.Name),
			To:      recipient,
		}
		email.AddBody("text/plain", fmt.Sprintf(signInText, option.Name, token, link, minutes))
		email.AddBody("text/html", fmt.Sprintf(signInHTML, option.Name, token, link, minutes))

		_, err := email.Write(w)
		return err
	}
}
