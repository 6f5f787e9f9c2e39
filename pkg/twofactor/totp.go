// Package twofactor issues and checks TOTP codes for two-factor sign in.
package twofactor

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidCode is returned when a code does not match the secret
var ErrInvalidCode = errors.New("invalid two-factor code")

// ErrCodeReused is returned for a code whose time step was already accepted
var ErrCodeReused = fmt.Errorf("%w: code already used", ErrInvalidCode)

const period = 30

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Setup is what a user needs to register the secret in an authenticator app
type Setup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// TOTP generates and validates time based one-time passwords
type TOTP struct {
	issuer string
	now    func() time.Time
}

// New creates a TOTP helper for the given issuer name
func New(issuer string) *TOTP {
	return &TOTP{issuer: issuer, now: time.Now}
}

// Generate creates a new secret for the account
func (t *TOTP) Generate(accountName string) (*Setup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		SecretSize:  20,
	})
	if err != nil {
		return nil, err
	}
	return &Setup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// Validate checks a code against the secret, accepting one period of clock skew
func (t *TOTP) Validate(code, secret string) error {
	_, err := t.match(code, secret)
	return err
}

// ValidateAfter checks a code like Validate and returns its time step. Codes
// from lastStep or earlier are rejected with ErrCodeReused.
func (t *TOTP) ValidateAfter(code, secret string, lastStep int64) (int64, error) {
	step, err := t.match(code, secret)
	if err != nil {
		return 0, err
	}
	if step <= lastStep {
		return 0, ErrCodeReused
	}
	return step, nil
}

// match returns the time step whose code equals code
func (t *TOTP) match(code, secret string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return 0, ErrInvalidCode
	}
	now := t.now().UTC()
	for _, offset := range []int64{0, -1, 1} {
		at := now.Add(time.Duration(offset*period) * time.Second)
		expected, err := totp.GenerateCodeCustom(secret, at, validateOpts)
		if err != nil {
			return 0, ErrInvalidCode
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return at.Unix() / period, nil
		}
	}
	return 0, ErrInvalidCode
}
