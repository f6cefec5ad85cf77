package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, role Role) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAllowedTable(t *testing.T) {
	cases := []struct {
		op   Operation
		role Role
		want bool
	}{
		{OpBookAppointment, RoleReceptionist, true},
		{OpBookAppointment, RoleNurse, false},
		{OpBookAppointment, RolePatient, false},
		{OpDeleteAppointment, RoleBranchManager, true},
		{OpDeleteAppointment, RoleReceptionist, false},
		{OpDeleteAppointment, RoleDoctor, false},
		{OpViewAvailability, RolePatient, true},
		{OpViewAppointments, RolePatient, false},
		{OpViewDoctors, RoleNurse, true},
		{OpEditAppointment, RoleBillingStaff, false},
	}

	for _, tc := range cases {
		if got := Allowed(tc.op, tc.role); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.op, tc.role, got, tc.want)
		}
	}
}

func TestRequirePassesValidRole(t *testing.T) {
	gate := NewGate(testSecret)

	var sawRole Role
	handler := gate.Require(OpBookAppointment, func(w http.ResponseWriter, r *http.Request) {
		sawRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, RoleReceptionist))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if sawRole != RoleReceptionist {
		t.Fatalf("role in context = %q", sawRole)
	}
}

func TestRequireRejectsForbiddenRole(t *testing.T) {
	gate := NewGate(testSecret)

	handler := gate.Require(OpDeleteAppointment, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodDelete, "/appointments/1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, RoleReceptionist))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRejectsMissingAndBadTokens(t *testing.T) {
	gate := NewGate(testSecret)

	handler := gate.Require(OpViewAppointments, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	cases := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no header", func(r *http.Request) {}},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", RoleDoctor))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	gate := NewGate(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": string(RoleDoctor),
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	if _, err := gate.Authenticate(req); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
