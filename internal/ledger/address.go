package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// AddressPrefix starts every generated address.
	AddressPrefix = "SOL"

	// InitialCounter is the counter value of an empty ledger.
	InitialCounter = 1000

	counterWidth    = 8
	suffixBytes     = 16
	signatureBytes  = 32
	signaturePrefix = "SIG"
)

// formatAddress builds "SOL" + zero-padded counter + random hex suffix.
func formatAddress(counter int, suffix string) string {
	return fmt.Sprintf("%s%0*d%s", AddressPrefix, counterWidth, counter, suffix)
}

// counterFromAddress extracts the counter embedded in a generated address.
// ok is false for addresses this package did not produce.
func counterFromAddress(address string) (int, bool) {
	if !strings.HasPrefix(address, AddressPrefix) {
		return 0, false
	}
	rest := address[len(AddressPrefix):]
	if len(rest) != counterWidth+2*suffixBytes {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:counterWidth])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsAddress reports whether s has the shape of a generated address.
func IsAddress(s string) bool {
	_, ok := counterFromAddress(s)
	if !ok {
		return false
	}
	_, err := hex.DecodeString(s[len(AddressPrefix)+counterWidth:])
	return err == nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newSignature returns an opaque display token. It is not derived from any record.
func newSignature() (string, error) {
	s, err := randomHex(signatureBytes)
	if err != nil {
		return "", err
	}
	return signaturePrefix + s, nil
}
