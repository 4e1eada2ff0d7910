package verification

import (
	"crypto/rand"
	"io"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// largest multiple of len(codeAlphabet) below 256, keeps picks uniform
	codeByteLimit = 252
)

type Issuer struct {
	random io.Reader
}

func NewIssuer() *Issuer {
	return &Issuer{random: rand.Reader}
}

// Issue returns a fresh code of CodeLength symbols from A-Z and 0-9.
func (i *Issuer) Issue() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(i.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= codeByteLimit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
