package auth

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// OTPSender delivers signup codes to the person signing up.
type OTPSender interface {
	SendSignupCode(ctx context.Context, email, code string) error
}

// LogSender writes codes to the structured log. It's the only sender the
// server ships with; deployments that need email put a relay in front of it.
type LogSender struct{}

func (LogSender) SendSignupCode(ctx context.Context, email, code string) error {
	logger.FromContext(ctx).Info("signup code issued", logger.Data{"email": email, "code": code})
	return nil
}

// generateCode returns a numeric code of the given length drawn from
// crypto/rand.
func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", errors.WithStack(err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
