package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequireUserSeedsContext(t *testing.T) {
	userID := uuid.New()
	var got uuid.UUID

	handler := RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", userID.String())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 but got %d", w.Code)
	}
	if got != userID {
		t.Fatalf("context user id %s does not match header %s", got, userID)
	}
}

func TestRequireUserRejectsMissingHeader(t *testing.T) {
	handler := RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 but got %d", w.Code)
	}
}

func TestRequireUserRejectsMalformedID(t *testing.T) {
	handler := RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad user id")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "not-a-uuid")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 but got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{name: "matching token passes", configured: "sekrit", provided: "sekrit", wantStatus: http.StatusNoContent},
		{name: "wrong token forbidden", configured: "sekrit", provided: "guess", wantStatus: http.StatusForbidden},
		{name: "missing token unauthorized", configured: "sekrit", provided: "", wantStatus: http.StatusUnauthorized},
		{name: "unset secret disables surface", configured: "", provided: "anything", wantStatus: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAdmin(tc.configured, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !IsAdminFromContext(r.Context()) {
					t.Fatal("admin flag missing from context")
				}
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.provided != "" {
				req.Header.Set("X-Admin-Token", tc.provided)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d but got %d", tc.wantStatus, w.Code)
			}
		})
	}
}
