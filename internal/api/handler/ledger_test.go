package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/api/handler"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
)

const testAdminSecret = "admin-s3cret"

func setupLedgerRouter(t *testing.T) (*gin.Engine, *ledger.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	l, err := ledger.Open(context.Background(), ledger.NewMemorySnapshot(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	h := handler.NewLedgerHandler(l, testAdminSecret, zap.NewNop())
	h.Register(r.Group("/api/v1"))
	return r, l
}

func asha() ledger.Fields {
	return ledger.Fields{FullName: "Asha Rao", SubjectID: "u1", NationalID: "1234"}
}

func TestLedgerStats_200(t *testing.T) {
	router, l := setupLedgerRouter(t)
	_, _ = l.Store(context.Background(), asha())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["totalAccounts"] != float64(1) || resp["accountsCreated"] != float64(1) {
		t.Errorf("unexpected stats: %v", resp)
	}
	if resp["storageSize"].(float64) <= 2 {
		t.Errorf("storageSize should cover one record, got %v", resp["storageSize"])
	}
}

func TestLedgerGetEntry_requiresAdmin(t *testing.T) {
	router, l := setupLedgerRouter(t)
	r, _ := l.Store(context.Background(), asha())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/"+r.Address, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no secret: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/"+r.Address, nil)
	req.Header.Set(handler.AdminSecretHeader, testAdminSecret)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Address  string        `json:"address"`
		UserData ledger.Fields `json:"userData"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Address != r.Address || resp.UserData.FullName != "Asha Rao" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestLedgerGetEntry_404(t *testing.T) {
	router, _ := setupLedgerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/SOL-missing", nil)
	req.Header.Set(handler.AdminSecretHeader, testAdminSecret)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestLedgerClear(t *testing.T) {
	router, l := setupLedgerRouter(t)
	r, _ := l.Store(context.Background(), asha())
	_, _ = l.Store(context.Background(), asha())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ledger", nil)
	req.Header.Set(handler.AdminSecretHeader, testAdminSecret)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["cleared"] != float64(2) {
		t.Errorf("cleared: got %v, want 2", resp["cleared"])
	}
	if _, ok := l.Lookup(context.Background(), r.Address); ok {
		t.Error("record survived clear")
	}
}

func TestLedgerAdmin_disabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := ledger.Open(context.Background(), ledger.NewMemorySnapshot(), zap.NewNop())
	r := gin.New()
	handler.NewLedgerHandler(l, "", zap.NewNop()).Register(r.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ledger", nil)
	req.Header.Set(handler.AdminSecretHeader, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
