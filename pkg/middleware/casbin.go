package middleware

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

//go:embed rbac_model.conf
var rbacModel string

//go:embed rbac_policy.csv
var rbacPolicy string

// RBAC enforces role permissions on routes using Casbin.
type RBAC struct {
	enforcer *casbin.Enforcer
	log      *zap.Logger
}

// NewRBAC builds an enforcer from the embedded model and policy.
func NewRBAC(log *zap.Logger) (*RBAC, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(rbacPolicy))
	if err != nil {
		return nil, fmt.Errorf("create rbac enforcer: %w", err)
	}
	policies, _ := enforcer.GetPolicy()
	log.Info("casbin enforcer ready", zap.Int("policies", len(policies)))
	return &RBAC{enforcer: enforcer, log: log.Named("rbac")}, nil
}

// Allowed reports whether role may perform act on obj.
func (r *RBAC) Allowed(role, obj, act string) (bool, error) {
	return r.enforcer.Enforce(role, obj, act)
}

// Middleware must run after JWT. The object is the matched route path.
func (r *RBAC) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unauthorized: missing user claims"})
		}
		obj, act := c.Path(), c.Request().Method
		allowed, err := r.Allowed(claims.Role, obj, act)
		if err != nil {
			r.log.Error("casbin enforce", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		if !allowed {
			r.log.Info("denied", zap.String("role", claims.Role), zap.String("obj", obj), zap.String("act", act))
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: insufficient permissions"})
		}
		return next(c)
	}
}
