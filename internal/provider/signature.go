package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signature header format: "t=<unix seconds>,v1=<hex hmac>".
// The mac covers "<t>.<raw body>" so neither can be swapped independently.

const signatureTolerance = 5 * time.Minute

func verifySignature(secret []byte, payload []byte, header string, now time.Time) error {
	var ts int64
	var mac string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("bad timestamp %q: %w", value, ErrInvalidSignature)
			}
			ts = parsed
		case "v1":
			mac = value
		}
	}

	if ts == 0 || mac == "" {
		return fmt.Errorf("malformed signature header: %w", ErrInvalidSignature)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("timestamp outside tolerance: %w", ErrInvalidSignature)
	}

	expected := computeSignature(secret, payload, ts)
	provided, err := hex.DecodeString(mac)
	if err != nil || !hmac.Equal(expected, provided) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(secret, payload []byte, ts int64) []byte {
	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return h.Sum(nil)
}

// SignPayload builds a valid signature header for the given body. Used by
// tests and local tooling to fabricate provider deliveries.
func SignPayload(secret, payload []byte, now time.Time) string {
	ts := now.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(secret, payload, ts)))
}
