package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gridworks-sim/gridworks/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// authConfig holds credentials loaded from environment variables.
type authConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// InitAuth loads credentials from GRIDWORKS_ADMIN_* / GRIDWORKS_OPERATOR_*
// env vars (the *_FILE convention works for each). With no admin
// credentials set, authentication is disabled entirely.
func InitAuth() {
	resolve := func(name string) string {
		v, err := config.ResolveSecret(name)
		if err != nil {
			log.Fatalf("failed to resolve %s: %v", name, err)
		}
		return v
	}

	a := &authConfig{
		adminUser:    resolve("GRIDWORKS_ADMIN_USER"),
		adminPass:    resolve("GRIDWORKS_ADMIN_PASS"),
		operatorUser: resolve("GRIDWORKS_OPERATOR_USER"),
		operatorPass: resolve("GRIDWORKS_OPERATOR_PASS"),
	}
	a.enabled = a.adminUser != "" && a.adminPass != ""
	auth = a
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate resolves the request's basic-auth credentials to a role,
// or empty string. With auth disabled every request acts as admin.
func authenticate(r *http.Request) Role {
	if auth == nil || !auth.enabled {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	candidates := []struct {
		user, pass string
		role       Role
	}{
		{auth.adminUser, auth.adminPass, RoleAdmin},
		{auth.operatorUser, auth.operatorPass, RoleOperator},
	}
	for _, c := range candidates {
		if c.user == "" || c.pass == "" {
			continue
		}
		if secureCompare(user, c.user) && secureCompare(pass, c.pass) {
			return c.role
		}
	}
	return ""
}

// secureCompare is constant-time so credential checks leak no timing.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Gridworks"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler, admitting only the listed roles. Missing
// or bad credentials get 401; a valid role outside the list gets 403.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}

		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole admits admin or operator.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin admits admin only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
