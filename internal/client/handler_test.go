package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/ConectaSur/api-referidos/internal/client"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/gorilla/mux"
)

func TestCreateIgnoresAdminFlag(t *testing.T) {
	db := setupDB(t)
	h := client.NewHandler(db, commission.NewService(commission.NewRepository(db)))

	body := `{"name":"Eve","email":"eve@example.com","password":"longenough1","externalId":"EXT900","isAdmin":true}`
	req := httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}

	var got client.Client
	if err := db.Where("email = ?", "eve@example.com").First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.IsAdmin {
		t.Fatal("registration must not grant the admin role from the request body")
	}

	// A token minted for the fresh account must not clear the admin gate.
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := auth.GenerateToken(got.ID, got.IsAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	gate := auth.Middleware(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	areq := httptest.NewRequest(http.MethodGet, "/settings", nil)
	areq.Header.Set("Authorization", "Bearer "+token)
	arr := httptest.NewRecorder()
	gate.ServeHTTP(arr, areq)
	if arr.Code != http.StatusForbidden {
		t.Errorf("self-registered account reached an admin route, status = %d", arr.Code)
	}
}

func TestEnsureAdmin(t *testing.T) {
	db := setupDB(t)
	c := seed(t, db, "root@example.com", "ADM-1", "CODE0009")

	if err := client.EnsureAdmin(db, "root@example.com"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	var got client.Client
	if err := db.First(&got, c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.IsAdmin {
		t.Error("bootstrap did not grant the admin role")
	}

	if err := client.EnsureAdmin(db, ""); err != nil {
		t.Errorf("empty email is a no-op, got %v", err)
	}
	if err := client.EnsureAdmin(db, "nobody@example.com"); err == nil {
		t.Error("unknown email should surface an error")
	}
}

func TestReadEndpointsSetJSONContentType(t *testing.T) {
	db := setupDB(t)
	h := client.NewHandler(db, commission.NewService(commission.NewRepository(db)))
	c := seed(t, db, "a@example.com", "12345", "CODE0001")

	ctx := context.WithValue(context.Background(), auth.CtxUserID, c.ID)
	ctx = context.WithValue(ctx, auth.CtxIsAdmin, false)
	newReq := func(withID bool) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/clients", nil).WithContext(ctx)
		if withID {
			r = mux.SetURLVars(r, map[string]string{"id": strconv.Itoa(int(c.ID))})
		}
		return r
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		withID  bool
	}{
		{"List", h.List, false},
		{"Get", h.Get, true},
		{"Summary", h.Summary, true},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		tt.handler(rr, newReq(tt.withID))
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d: %s", tt.name, rr.Code, rr.Body.String())
			continue
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type = %q, want application/json", tt.name, ct)
		}
	}
}
