package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/accounts"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/session"
)

// accountSvc is the interface expected by AuthHandler, satisfied by *accounts.Service.
type accountSvc interface {
	Register(ctx context.Context, name, email, password, gender string) (*accounts.User, error)
	RegisterPolice(ctx context.Context, email, password, department string) (*accounts.Police, error)
	Login(ctx context.Context, email, password string) (*accounts.User, error)
	LoginPolice(ctx context.Context, email, password, department string) (*accounts.Police, error)
}

// AuthHandler handles account registration, login and logout.
type AuthHandler struct {
	accounts     accountSvc
	tokens       *session.Issuer
	cookieSecure bool
	logger       *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc accountSvc, tokens *session.Issuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: svc, tokens: tokens, logger: logger}
}

// SetCookieSecure marks the session cookie Secure (HTTPS only).
func (h *AuthHandler) SetCookieSecure(secure bool) {
	h.cookieSecure = secure
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/register", h.RegisterTourist)
	rg.POST("/police-register", h.RegisterPolice)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
}

// ─── Request types ───────────────────────────────────────────────────────────

type registerRequest struct {
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Gender   string `json:"gender"   binding:"required"`
}

type policeRegisterRequest struct {
	Email      string `json:"email"      binding:"required,email"`
	Password   string `json:"password"   binding:"required"`
	Department string `json:"department" binding:"required"`
}

type loginRequest struct {
	Email            string `json:"email"    binding:"required"`
	Password         string `json:"password" binding:"required"`
	UserType         string `json:"userType"`
	PoliceDepartment string `json:"policeDepartment"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// RegisterTourist handles POST /register.
func (h *AuthHandler) RegisterTourist(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: name, email, password, gender"})
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Gender)
	if err != nil {
		h.accountError(c, "register", err)
		return
	}

	if !h.startSession(c, u.ID.String(), u.Email, session.KindTourist) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "user registered successfully",
		"user":    u,
	})
}

// RegisterPolice handles POST /police-register.
func (h *AuthHandler) RegisterPolice(c *gin.Context) {
	var req policeRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: email, password, department"})
		return
	}

	p, err := h.accounts.RegisterPolice(c.Request.Context(), req.Email, req.Password, req.Department)
	if err != nil {
		h.accountError(c, "register police", err)
		return
	}

	if !h.startSession(c, p.ID.String(), p.Email, session.KindPolice) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "department registered successfully",
		"police":  p,
	})
}

// Login handles POST /login. userType "police" selects department login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	ctx := c.Request.Context()

	if req.UserType == session.KindPolice {
		if req.PoliceDepartment == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "department is required"})
			return
		}
		p, err := h.accounts.LoginPolice(ctx, req.Email, req.Password, req.PoliceDepartment)
		if err != nil {
			h.accountError(c, "police login", err)
			return
		}
		if !h.startSession(c, p.ID.String(), p.Email, session.KindPolice) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "login successful", "police": p})
		return
	}

	u, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.accountError(c, "login", err)
		return
	}
	if !h.startSession(c, u.ID.String(), u.Email, session.KindTourist) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "user": u})
}

// Logout handles POST /logout by expiring the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// startSession issues a token, sets the session cookie and echoes the token
// in the X-Session-Token header for non-browser clients.
func (h *AuthHandler) startSession(c *gin.Context, subjectID, email, kind string) bool {
	tok, err := h.tokens.Issue(subjectID, email, kind)
	if err != nil {
		h.logger.Error("issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, tok, int(h.tokens.TTL().Seconds()), "/", "", h.cookieSecure, true)
	c.Header("X-Session-Token", tok)
	return true
}

func (h *AuthHandler) accountError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, accounts.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, accounts.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
