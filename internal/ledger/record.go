package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput is returned by Store when a required identity field is blank.
var ErrInvalidInput = errors.New("missing required identity data (name, id, or national id)")

// Verification outcomes reported in VerifyResult.Reason.
const (
	ReasonNotFound = "not found"
	ReasonVerified = "hash verified"
	ReasonMismatch = "hash mismatch"
)

// Fields is the minimal identity payload anchored for a person.
type Fields struct {
	FullName   string `json:"name"`
	SubjectID  string `json:"id"`
	NationalID string `json:"aadhaar"`
	Timestamp  int64  `json:"timestamp,omitempty"` // ms since epoch, set by Store
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.FullName) == "" ||
		strings.TrimSpace(f.SubjectID) == "" ||
		strings.TrimSpace(f.NationalID) == "" {
		return ErrInvalidInput
	}
	return nil
}

// Record is what the ledger keeps per address. It is never mutated after Store.
type Record struct {
	Fields           Fields    `json:"userData"`
	VerificationHash string    `json:"verificationHash"`
	CreatedAt        time.Time `json:"createdAt"`
	Signature        string    `json:"txSignature"`
}

// Entry is one [address, record] pair of a snapshot.
type Entry struct {
	Address string
	Record  Record
}

// Receipt is returned to the caller of Store.
type Receipt struct {
	Address          string `json:"blockchainAddress"`
	VerificationHash string `json:"verificationHash"`
	Signature        string `json:"transactionSignature"`
}

// VerifyResult reports whether a presented hash matches the ledger's digest.
// Fields is only set when Valid is true.
type VerifyResult struct {
	Valid     bool    `json:"valid"`
	Reason    string  `json:"reason"`
	Fields    *Fields `json:"userData,omitempty"`
	Signature string  `json:"transactionSignature"`
}

// Stats summarises the ledger for administrative display.
type Stats struct {
	Count          int        `json:"totalAccounts"`
	CounterDelta   int        `json:"accountsCreated"`
	ByteSize       int        `json:"storageSize"`
	Verifications  int64      `json:"totalVerifications"`
	LastVerifiedAt *time.Time `json:"lastVerification,omitempty"`
}

// Digest computes the verification hash of an identity bound to an address.
// It is a pure function of its inputs; Timestamp does not participate.
func Digest(f Fields, address string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%s:%s", f.FullName, f.SubjectID, f.NationalID, address)
	return hex.EncodeToString(h.Sum(nil))
}
