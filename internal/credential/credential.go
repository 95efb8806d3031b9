package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpDigits = "0123456789"

	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars = "0123456789"
	punctChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

	// OTPLength is the number of digits in a registration verification code.
	OTPLength = 6
	// TempPasswordLength is the length of an issued temporary password.
	TempPasswordLength = 8
)

// GenerateOTP returns a numeric verification code with each digit drawn
// uniformly from a cryptographically secure source.
func GenerateOTP() (string, error) {
	code := make([]byte, OTPLength)
	for i := range code {
		c, err := pick(otpDigits)
		if err != nil {
			return "", err
		}
		code[i] = c
	}
	return string(code), nil
}

// GenerateTempPassword returns a temporary password guaranteed to contain at
// least one lowercase letter, one uppercase letter, one digit and one
// punctuation symbol. The remaining characters are drawn uniformly from the
// full alphabet and the result is shuffled with a secure shuffle so the
// guaranteed classes are not positionally predictable. Callers must never log
// or persist the returned value in plaintext.
func GenerateTempPassword() (string, error) {
	full := lowerChars + upperChars + digitChars + punctChars

	pwd := make([]byte, 0, TempPasswordLength)
	for _, class := range []string{lowerChars, upperChars, digitChars, punctChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}
	for len(pwd) < TempPasswordLength {
		c, err := pick(full)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}

	if err := shuffle(pwd); err != nil {
		return "", err
	}
	return string(pwd), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random index: %w", err)
	}
	return alphabet[n.Int64()], nil
}

// shuffle performs a Fisher-Yates shuffle using crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to draw shuffle index: %w", err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
