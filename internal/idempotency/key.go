package idempotency

import (
	"errors"
	"fmt"
)

// MaxKeyLength bounds caller-supplied idempotency keys. Clients are expected
// to send programmatically generated tokens (UUIDs fit comfortably).
const MaxKeyLength = 50

// ErrMalformedKey is returned when a raw key fails validation. Handlers map
// it to a client error before any store access happens.
var ErrMalformedKey = errors.New("malformed idempotency key")

// Key is a validated idempotency token. Construct it via ParseKey only.
type Key struct {
	value string
}

// ParseKey validates a raw token. The value is kept as-is: no trimming or
// case folding, so two tokens differing in whitespace are different keys.
func ParseKey(raw string) (Key, error) {
	if raw == "" {
		return Key{}, fmt.Errorf("%w: key cannot be empty", ErrMalformedKey)
	}
	if len(raw) > MaxKeyLength {
		return Key{}, fmt.Errorf("%w: key exceeds %d characters", ErrMalformedKey, MaxKeyLength)
	}
	return Key{value: raw}, nil
}

func (k Key) String() string {
	return k.value
}
