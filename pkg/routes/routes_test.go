package pkg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/Neskrux/CrmInvest-sub003/internal/auth"
	"github.com/Neskrux/CrmInvest-sub003/internal/boleto"
	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	"github.com/Neskrux/CrmInvest-sub003/pkg/middleware"
)

type stubRunner struct{ calls int }

func (s *stubRunner) Run(_ context.Context, dayOffset int) (*boleto.BatchResult, error) {
	s.calls++
	return &boleto.BatchResult{DayOffset: dayOffset, Outcomes: []boleto.RecipientOutcome{}}, nil
}

func TestRegisterRoutes(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &config.Config{HTTP: config.HTTP{JWTKey: "k"}}
	rbac, err := middleware.NewRBAC(log)
	if err != nil {
		t.Fatalf("rbac: %v", err)
	}
	runner := &stubRunner{}
	e := echo.New()
	RegisterRoutes(e, boleto.NewHandler(runner, log), rbac, cfg, log)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}

	tok, err := auth.GenerateJWT([]byte("k"), "cron", "", auth.RoleScheduler, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/boletos/notifications/run", strings.NewReader(`{"dayOffset":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || runner.calls != 1 {
		t.Fatalf("run status %d calls %d: %s", rec.Code, runner.calls, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/boletos/notifications/run", strings.NewReader(`{"dayOffset":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || runner.calls != 1 {
		t.Fatalf("unauthenticated run status %d calls %d", rec.Code, runner.calls)
	}
}

func TestNewEchoServerNeedsJWTKey(t *testing.T) {
	_, err := NewEchoServer(nil, nil, &config.Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected configuration error")
	}
}
