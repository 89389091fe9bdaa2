package auth

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/johnsto/go-passwordless"
	"go.uber.org/zap"
)

// ContextKey is a defined type to be used in context.Context containing the Claims
type ContextKey string

// Context is key used in context.Context containing the Claims
const Context ContextKey = "authContext"

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// sign-in code validity per transport. The logged dev link lives longer so a
// slow local loop does not chase expired codes.
const (
	emailCodeValidity = 15 * time.Minute
	logCodeValidity   = 30 * time.Minute
)

// Auth issues one-time sign-in codes over email and turns a verified code
// into a JWT token pair. There are no passwords anywhere in the system.
type Auth struct {
	Options
	pw     *passwordless.Passwordless
	jwtKey []byte
}

// Claims is the struct for jwt token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	ID    string `json:"id"`
}

// Options provides initialization parameters for Auth
type Options struct {
	Redis  redis.UniversalClient
	Logger *zap.Logger

	JWTSigningKey string

	Environment Environment
	SMTPAuth    smtp.Auth
	From        string
	Hostname    string
	EmailOption EmailOption
}

// EmailOption specifies the product name shown in the sign-in email, and the
// LinkGenerator for the one-click login link
type EmailOption struct {
	Name          string
	LinkGenerator LinkGenerator
}

// LinkGenerator builds the login link embedded in the sign-in email
type LinkGenerator func(uid, token string) string

func (o *Options) validate() error {
	if o == nil {
		return fmt.Errorf("nil option is invalid")
	}
	if o.Redis == nil {
		return fmt.Errorf("nil Redis is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.JWTSigningKey) < 16 {
		return fmt.Errorf("jwt signing key shorter than 16 characters is invalid")
	}
	if o.Environment == "" {
		o.Environment = EnvDevelopment
	}
	if o.SMTPAuth == nil {
		return fmt.Errorf("nil SMTPAuth is invalid")
	}
	if o.From == "" {
		return fmt.Errorf("empty From is invalid")
	}
	if o.Hostname == "" {
		return fmt.Errorf("empty Hostname is invalid")
	}
	if o.EmailOption.Name == "" {
		return fmt.Errorf("empty EmailOption.Name is invalid")
	}
	if o.EmailOption.LinkGenerator == nil {
		return fmt.Errorf("nil EmailOption.LinkGenerator is invalid")
	}

	return nil
}

// New will return a new instance of Auth for authentication. Codes are kept
// in redis so any api replica can verify a code requested through another.
func New(option Options) (*Auth, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}

	pw := passwordless.New(passwordless.NewRedisStore(option.Redis))
	pw.SetTransport(transportLog, passwordless.LogTransport{
		MessageFunc: func(token, uid string) string {
			return option.EmailOption.LinkGenerator(uid, token)
		},
	}, passwordless.NewCrockfordGenerator(8), logCodeValidity)
	pw.SetTransport(transportEmail, passwordless.NewSMTPTransport(
		option.Hostname,
		option.From,
		option.SMTPAuth,
		signInComposer(option.EmailOption, emailCodeValidity),
	), passwordless.NewCrockfordGenerator(32), emailCodeValidity)

	return &Auth{
		Options: option,
		pw:      pw,
		jwtKey:  []byte(option.JWTSigningKey),
	}, nil
}
