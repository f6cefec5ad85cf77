package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleSuperAdmin     Role = "Super_Admin"
	RoleBranchManager  Role = "Branch_Manager"
	RoleDoctor         Role = "Doctor"
	RoleAdminStaff     Role = "Admin_Staff"
	RoleNurse          Role = "Nurse"
	RoleReceptionist   Role = "Receptionist"
	RoleBillingStaff   Role = "Billing_Staff"
	RoleInsuranceAgent Role = "Insurance_Agent"
	RolePatient        Role = "Patient"
)

// Operation names one guarded action on the scheduling surface.
type Operation string

const (
	OpViewAvailability  Operation = "view_availability"
	OpViewAppointments  Operation = "view_appointments"
	OpBookAppointment   Operation = "book_appointment"
	OpEditAppointment   Operation = "edit_appointment"
	OpDeleteAppointment Operation = "delete_appointment"
	OpViewDoctors       Operation = "view_doctors"
)

// allowedRoles is the full authorization table, spelled out per operation.
var allowedRoles = map[Operation][]Role{
	OpViewAvailability: {
		RoleSuperAdmin, RoleBranchManager, RoleDoctor, RoleAdminStaff,
		RoleNurse, RoleReceptionist, RolePatient,
	},
	OpViewAppointments: {
		RoleSuperAdmin, RoleBranchManager, RoleDoctor, RoleAdminStaff,
		RoleNurse, RoleReceptionist,
	},
	OpBookAppointment: {
		RoleSuperAdmin, RoleBranchManager, RoleDoctor, RoleAdminStaff,
		RoleReceptionist,
	},
	OpEditAppointment: {
		RoleSuperAdmin, RoleBranchManager, RoleDoctor, RoleAdminStaff,
		RoleReceptionist,
	},
	OpDeleteAppointment: {
		RoleSuperAdmin, RoleBranchManager,
	},
	OpViewDoctors: {
		RoleSuperAdmin, RoleBranchManager, RoleDoctor, RoleAdminStaff,
		RoleNurse, RoleReceptionist, RolePatient,
	},
}

// Allowed reports whether role may perform op.
func Allowed(op Operation, role Role) bool {
	for _, r := range allowedRoles[op] {
		if r == role {
			return true
		}
	}
	return false
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("role not allowed for this operation")
)

type contextKey string

const roleKey contextKey = "auth_role"

// Gate validates bearer tokens and enforces the allowedRoles table.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Authenticate extracts and verifies the role claim from the request.
func (g *Gate) Authenticate(r *http.Request) (Role, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return "", ErrInvalidToken
	}
	return Role(role), nil
}

// Require wraps a handler with authentication plus the allow-list check
// for one operation.
func (g *Gate) Require(op Operation, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := g.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if !Allowed(op, role) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
	}
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleKey).(Role)
	return role, ok
}
