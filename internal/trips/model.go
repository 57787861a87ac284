package trips

import (
	"time"

	"github.com/google/uuid"
)

// Tourist is a trip registration. Its ledger triple is copied from the
// receipt returned when the tourist's identity was anchored.
type Tourist struct {
	ID                uuid.UUID          `json:"id"`
	DigitalID         string             `json:"digitalId"`
	UserID            uuid.UUID          `json:"userId"`
	FirstName         string             `json:"firstName"`
	LastName          string             `json:"lastName"`
	DateOfBirth       time.Time          `json:"dateOfBirth"`
	Nationality       string             `json:"nationality"`
	AadhaarNumber     string             `json:"aadhaarNumber"`
	Gender            string             `json:"gender"`
	ProfileImage      string             `json:"profileImage,omitempty"`
	EntryPoint        string             `json:"entryPoint"`
	EntryDate         time.Time          `json:"entryDate"`
	ExpectedExitDate  *time.Time         `json:"expectedExitDate,omitempty"`
	BlockchainAddress string             `json:"blockchainAddress"`
	VerificationHash  string             `json:"verificationHash"`
	TxSignature       string             `json:"transactionSignature"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// FullName is the name anchored on the ledger.
func (t *Tourist) FullName() string {
	return t.FirstName + " " + t.LastName
}

// EmergencyContact belongs to exactly one Tourist.
type EmergencyContact struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Relationship string    `json:"relationship"`
	IsPrimary    bool      `json:"isPrimary"`
}

// TripRequest is the input to CreateTrip.
type TripRequest struct {
	FirstName         string             `json:"firstName"`
	LastName          string             `json:"lastName"`
	DateOfBirth       string             `json:"dateOfBirth"`
	Nationality       string             `json:"nationality"`
	AadhaarNumber     string             `json:"aadhaarNumber"`
	Gender            string             `json:"gender"`
	ProfileImage      string             `json:"profileImage"`
	EntryPoint        string             `json:"entryPoint"`
	ExpectedExitDate  string             `json:"expectedExitDate"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
}

// DigitalIDInfo is what a tourist shares with an authority for verification.
type DigitalIDInfo struct {
	TouristID          uuid.UUID `json:"touristId"`
	DigitalID          string    `json:"digitalId"`
	BlockchainAddress  string    `json:"blockchainAddress"`
	VerificationHash   string    `json:"verificationHash"`
	Name               string    `json:"name"`
	CreatedAt          time.Time `json:"createdAt"`
	TotalVerifications int64     `json:"totalAuthorityVerifications"`
}
