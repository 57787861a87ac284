package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/api/handler"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/session"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/trips"
)

// ── Stub trip service ─────────────────────────────────────────────────────

// stubTripSvc anchors identities on a real in-memory ledger and keeps trips
// in a slice.
type stubTripSvc struct {
	ledger *ledger.Ledger
	trips  []*trips.Tourist
}

func (s *stubTripSvc) CreateTrip(ctx context.Context, userID uuid.UUID, req trips.TripRequest) (*trips.Tourist, ledger.Receipt, error) {
	if req.FirstName == "" || req.AadhaarNumber == "" {
		return nil, ledger.Receipt{}, trips.ErrMissingFields
	}
	t := &trips.Tourist{ID: uuid.New(), UserID: userID, FirstName: req.FirstName, LastName: req.LastName, AadhaarNumber: req.AadhaarNumber}
	rcpt, err := s.ledger.Store(ctx, ledger.Fields{FullName: t.FullName(), SubjectID: userID.String(), NationalID: req.AadhaarNumber})
	if err != nil {
		return nil, ledger.Receipt{}, err
	}
	t.BlockchainAddress, t.VerificationHash, t.TxSignature = rcpt.Address, rcpt.VerificationHash, rcpt.Signature
	s.trips = append(s.trips, t)
	return t, rcpt, nil
}

func (s *stubTripSvc) ListTrips(_ context.Context, userID uuid.UUID) ([]*trips.Tourist, error) {
	var out []*trips.Tourist
	for _, t := range s.trips {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubTripSvc) VerificationInfo(_ context.Context, touristID, requesterID uuid.UUID, police bool) (*trips.DigitalIDInfo, error) {
	for _, t := range s.trips {
		if t.ID != touristID {
			continue
		}
		if !police && t.UserID != requesterID {
			return nil, trips.ErrForbidden
		}
		return &trips.DigitalIDInfo{TouristID: t.ID, BlockchainAddress: t.BlockchainAddress, VerificationHash: t.VerificationHash}, nil
	}
	return nil, trips.ErrNotFound
}

func (s *stubTripSvc) LatestDigitalID(_ context.Context, userID uuid.UUID) (*trips.DigitalIDInfo, error) {
	for i := len(s.trips) - 1; i >= 0; i-- {
		if t := s.trips[i]; t.UserID == userID {
			return &trips.DigitalIDInfo{TouristID: t.ID, BlockchainAddress: t.BlockchainAddress}, nil
		}
	}
	return nil, trips.ErrNoDigitalID
}

func (s *stubTripSvc) VerifyIdentity(ctx context.Context, address, hash string) ledger.VerifyResult {
	return s.ledger.Verify(ctx, address, hash)
}

func (s *stubTripSvc) LedgerStats() ledger.Stats { return s.ledger.Stats() }

// ── Helpers ───────────────────────────────────────────────────────────────

type tripFixture struct {
	router *gin.Engine
	svc    *stubTripSvc
	iss    *session.Issuer
}

func setupTripRouter(t *testing.T) *tripFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	l, err := ledger.Open(context.Background(), ledger.NewMemorySnapshot(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	svc := &stubTripSvc{ledger: l}
	iss := newTestIssuer(t)
	r := gin.New()
	handler.NewTripHandler(svc, iss, zap.NewNop()).Register(r.Group("/api/v1"))
	return &tripFixture{router: r, svc: svc, iss: iss}
}

func (f *tripFixture) token(t *testing.T, subject uuid.UUID, kind string) string {
	t.Helper()
	tok, err := f.iss.Issue(subject.String(), "someone@example.com", kind)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *tripFixture) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func tripBody() trips.TripRequest {
	return trips.TripRequest{FirstName: "Asha", LastName: "Rao", AadhaarNumber: "1234", DateOfBirth: "1990-04-01"}
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestCreateTrip_401_noToken(t *testing.T) {
	f := setupTripRouter(t)
	w := f.do(http.MethodPost, "/api/v1/trip/"+uuid.NewString(), "", tripBody())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateTrip_401_badToken(t *testing.T) {
	f := setupTripRouter(t)
	w := f.do(http.MethodPost, "/api/v1/trip/"+uuid.NewString(), "not-a-jwt", tripBody())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateTrip_403_otherUser(t *testing.T) {
	f := setupTripRouter(t)
	tok := f.token(t, uuid.New(), session.KindTourist)
	w := f.do(http.MethodPost, "/api/v1/trip/"+uuid.NewString(), tok, tripBody())
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestCreateTrip_201(t *testing.T) {
	f := setupTripRouter(t)
	user := uuid.New()
	tok := f.token(t, user, session.KindTourist)

	w := f.do(http.MethodPost, "/api/v1/trip/"+user.String(), tok, tripBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		DigitalIDInfo struct {
			Hash    string `json:"authorityVerificationHash"`
			Address string `json:"blockchainAddress"`
		} `json:"digitalIdInfo"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DigitalIDInfo.Address == "" || len(resp.DigitalIDInfo.Hash) != 64 {
		t.Errorf("unexpected digitalIdInfo: %+v", resp.DigitalIDInfo)
	}
}

func TestCreateTrip_400_missingFields(t *testing.T) {
	f := setupTripRouter(t)
	user := uuid.New()
	tok := f.token(t, user, session.KindTourist)

	w := f.do(http.MethodPost, "/api/v1/trip/"+user.String(), tok, trips.TripRequest{LastName: "Rao"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListTrips_policeMaySeeAnyUser(t *testing.T) {
	f := setupTripRouter(t)
	user := uuid.New()
	f.do(http.MethodPost, "/api/v1/trip/"+user.String(), f.token(t, user, session.KindTourist), tripBody())

	if w := f.do(http.MethodGet, "/api/v1/trips/"+user.String(), f.token(t, uuid.New(), session.KindTourist), nil); w.Code != http.StatusForbidden {
		t.Errorf("other tourist: expected 403, got %d", w.Code)
	}

	w := f.do(http.MethodGet, "/api/v1/trips/"+user.String(), f.token(t, uuid.New(), session.KindPolice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("police: expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["count"] != float64(1) {
		t.Errorf("count: got %v, want 1", resp["count"])
	}
}

func TestTouristVerification_ownerOrPolice(t *testing.T) {
	f := setupTripRouter(t)
	user := uuid.New()
	tok := f.token(t, user, session.KindTourist)
	f.do(http.MethodPost, "/api/v1/trip/"+user.String(), tok, tripBody())
	touristID := f.svc.trips[0].ID.String()

	if w := f.do(http.MethodGet, "/api/v1/tourist-verification/"+touristID, tok, nil); w.Code != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tourist-verification/"+touristID, f.token(t, uuid.New(), session.KindPolice), nil); w.Code != http.StatusOK {
		t.Errorf("police: expected 200, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tourist-verification/"+touristID, f.token(t, uuid.New(), session.KindTourist), nil); w.Code != http.StatusForbidden {
		t.Errorf("stranger: expected 403, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/tourist-verification/"+uuid.NewString(), tok, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown tourist: expected 404, got %d", w.Code)
	}
}

func TestMyDigitalID_404_beforeAnyTrip(t *testing.T) {
	f := setupTripRouter(t)
	w := f.do(http.MethodGet, "/api/v1/my-digital-id", f.token(t, uuid.New(), session.KindTourist), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestVerifyUser(t *testing.T) {
	f := setupTripRouter(t)
	rcpt, err := f.svc.ledger.Store(context.Background(), ledger.Fields{FullName: "Asha Rao", SubjectID: "u1", NationalID: "1234"})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid without a session", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/verify-user", "", map[string]string{
			"blockchainAddress": rcpt.Address, "verificationHash": rcpt.VerificationHash,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Verified bool `json:"verified"`
			UserData struct {
				Name    string `json:"name"`
				Aadhaar string `json:"aadhaar"`
			} `json:"userData"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if !resp.Verified || resp.UserData.Name != "Asha Rao" || resp.UserData.Aadhaar != "1234" {
			t.Errorf("unexpected body: %+v", resp)
		}
	})

	t.Run("tampered hash", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/verify-user", "", map[string]string{
			"blockchainAddress": rcpt.Address, "verificationHash": "deadbeef",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["verified"] != false || resp["reason"] != ledger.ReasonMismatch {
			t.Errorf("unexpected body: %v", resp)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/verify-user", "", map[string]string{"blockchainAddress": rcpt.Address})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	if got := f.svc.ledger.Stats().Verifications; got != 2 {
		t.Errorf("verifications: got %d, want 2", got)
	}
}
