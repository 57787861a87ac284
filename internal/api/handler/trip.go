package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/session"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/trips"
)

// tripSvc is the interface expected by TripHandler, satisfied by *trips.Service.
type tripSvc interface {
	CreateTrip(ctx context.Context, userID uuid.UUID, req trips.TripRequest) (*trips.Tourist, ledger.Receipt, error)
	ListTrips(ctx context.Context, userID uuid.UUID) ([]*trips.Tourist, error)
	VerificationInfo(ctx context.Context, touristID, requesterID uuid.UUID, police bool) (*trips.DigitalIDInfo, error)
	LatestDigitalID(ctx context.Context, userID uuid.UUID) (*trips.DigitalIDInfo, error)
	VerifyIdentity(ctx context.Context, address, hash string) ledger.VerifyResult
	LedgerStats() ledger.Stats
}

// TripHandler exposes trip registration and identity verification.
type TripHandler struct {
	trips  tripSvc
	tokens *session.Issuer
	logger *zap.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(svc tripSvc, tokens *session.Issuer, logger *zap.Logger) *TripHandler {
	return &TripHandler{trips: svc, tokens: tokens, logger: logger}
}

// Register mounts the trip routes. Everything except verify-user needs a
// session. verify-user stays outside RequireSession on purpose: checkpoints
// verify the address and hash a tourist presents without holding an account,
// and the response discloses only what the presented hash already commits to.
func (h *TripHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/verify-user", h.VerifyUser)

	authed := rg.Group("", RequireSession(h.tokens))
	{
		authed.POST("/trip/:id", h.CreateTrip)
		authed.GET("/trips/:id", h.ListTrips)
		authed.GET("/my-digital-id", h.MyDigitalID)
		authed.GET("/authority-dashboard", h.AuthorityDashboard)
		authed.GET("/tourist-verification/:touristId", h.TouristVerification)
		authed.POST("/location", h.Location)
	}
}

type verifyUserRequest struct {
	BlockchainAddress string `json:"blockchainAddress"`
	VerificationHash  string `json:"verificationHash"`
}

// CreateTrip handles POST /trip/:id. It registers a trip for the session user
// and anchors the tourist identity.
func (h *TripHandler) CreateTrip(c *gin.Context) {
	claims, subject, ok := sessionSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session subject"})
		return
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	if claims.Kind != session.KindTourist || userID != subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	var req trips.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tourist, rcpt, err := h.trips.CreateTrip(c.Request.Context(), userID, req)
	if err != nil {
		h.tripError(c, "create trip", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "digital ID created successfully",
		"tourist": tourist,
		"digitalIdInfo": gin.H{
			"authorityVerificationHash": rcpt.VerificationHash,
			"blockchainAddress":         rcpt.Address,
			"transactionSignature":      rcpt.Signature,
		},
	})
}

// ListTrips handles GET /trips/:id.
func (h *TripHandler) ListTrips(c *gin.Context) {
	claims, subject, ok := sessionSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session subject"})
		return
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	if claims.Kind != session.KindPolice && userID != subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	list, err := h.trips.ListTrips(c.Request.Context(), userID)
	if err != nil {
		h.tripError(c, "list trips", err)
		return
	}
	if list == nil {
		list = []*trips.Tourist{}
	}
	c.JSON(http.StatusOK, gin.H{"trips": list, "count": len(list)})
}

// MyDigitalID handles GET /my-digital-id: the latest digital ID of the session user.
func (h *TripHandler) MyDigitalID(c *gin.Context) {
	_, subject, ok := sessionSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session subject"})
		return
	}

	info, err := h.trips.LatestDigitalID(c.Request.Context(), subject)
	if err != nil {
		h.tripError(c, "fetch digital id", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"digitalId": info})
}

// AuthorityDashboard handles GET /authority-dashboard.
func (h *TripHandler) AuthorityDashboard(c *gin.Context) {
	st := h.trips.LedgerStats()
	c.JSON(http.StatusOK, gin.H{
		"systemStatus": gin.H{
			"digitalIdSystemActive":           true,
			"registeredDigitalIds":            st.Count,
			"totalVerificationsByAuthorities": st.Verifications,
			"lastVerification":                st.LastVerifiedAt,
		},
	})
}

// TouristVerification handles GET /tourist-verification/:touristId.
func (h *TripHandler) TouristVerification(c *gin.Context) {
	claims, subject, ok := sessionSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session subject"})
		return
	}
	touristID, err := uuid.Parse(c.Param("touristId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tourist ID"})
		return
	}

	info, err := h.trips.VerificationInfo(c.Request.Context(), touristID, subject, claims.Kind == session.KindPolice)
	if err != nil {
		h.tripError(c, "tourist verification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

// Location handles POST /location. Location tracking is acknowledged only.
func (h *TripHandler) Location(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "location received"})
}

// VerifyUser handles POST /verify-user: authority verification of a presented
// blockchain address and verification hash.
func (h *TripHandler) VerifyUser(c *gin.Context) {
	var req verifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BlockchainAddress == "" || req.VerificationHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "both verificationHash and blockchainAddress are required",
		})
		return
	}

	res := h.trips.VerifyIdentity(c.Request.Context(), req.BlockchainAddress, req.VerificationHash)
	if !res.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                "digital id verification failed",
			"reason":               res.Reason,
			"verified":             false,
			"transactionSignature": res.Signature,
		})
		return
	}

	st := h.trips.LedgerStats()
	c.JSON(http.StatusOK, gin.H{
		"verified": true,
		"userData": gin.H{
			"name":    res.Fields.FullName,
			"aadhaar": res.Fields.NationalID,
		},
		"verificationDetails": gin.H{
			"reason":                     res.Reason,
			"authorityVerificationCount": st.Verifications,
			"verificationTimestamp":      time.Now().UTC(),
			"transactionSignature":       res.Signature,
		},
	})
}

func (h *TripHandler) tripError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, trips.ErrMissingFields), errors.Is(err, trips.ErrInvalidDate),
		errors.Is(err, ledger.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, trips.ErrUserNotFound), errors.Is(err, trips.ErrNotFound),
		errors.Is(err, trips.ErrNoDigitalID):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trips.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
