package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-portal/internal/transport"
	"github.com/frahmantamala/payment-portal/internal/user"
)

// RBACAuthorization gates API routes by role. Per-record rules stay in the
// services.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

func (ra *RBACAuthorization) RequireRoles(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := user.FromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: user not found in context")
				ra.WriteError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			if !u.Role.In(roles...) {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient role",
					"user_id", u.ID,
					"role", u.Role,
					"required_roles", roles)
				ra.WriteError(w, http.StatusForbidden, "Not enough permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireApprover() func(http.Handler) http.Handler {
	return ra.RequireRoles(user.RoleManager, user.RoleHR, user.RoleAdmin)
}

func (ra *RBACAuthorization) RequireHRAdmin() func(http.Handler) http.Handler {
	return ra.RequireRoles(user.RoleHR, user.RoleAdmin)
}
