package authz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/f4ntasma/codex/internal/api/http"
	"github.com/f4ntasma/codex/internal/authz"
	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/repository"
	"github.com/f4ntasma/codex/internal/session"
)

const cookieName = "auth-token"

type guardedApp struct {
	app    *fiber.App
	issuer *session.Issuer
}

func newGuardedApp(t *testing.T) *guardedApp {
	t.Helper()
	tokens := session.NewTokenManager("test-secret", time.Hour)
	store := session.NewMemoryStore()
	profiles := repository.NewMemoryProfileRepository()
	issuer := session.NewIssuer(tokens, store)
	resolver := session.NewResolver(tokens, store, profiles, zap.NewNop())
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	seed := func(subjectID string, role domain.Role) {
		_, err := profiles.EnsureProfile(context.Background(), subjectID, subjectID+"@uni.edu", "", role)
		require.NoError(t, err)
	}
	seed("student-1", domain.RoleStudent)
	seed("admin-1", domain.RoleAdmin)
	seed("corp-1", domain.RoleCorporate)
	seed("pending-1", domain.RoleUnassigned)

	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	app.Use(authz.ResolvePrincipal(resolver, cookieName))
	app.Get("/students", authz.RequireRoles(metrics, domain.RoleStudent), ok)
	app.Get("/admin", authz.RequireRoles(metrics, domain.RoleAdmin), ok)
	app.Post("/role", authz.RequirePending(metrics), ok)
	app.Get("/page", authz.RequireRolesOrRedirect(metrics, domain.RoleStudent), ok)

	return &guardedApp{app: app, issuer: issuer}
}

func (g *guardedApp) tokenFor(t *testing.T, subjectID string, role domain.Role) string {
	t.Helper()
	_, token, err := g.issuer.Issue(context.Background(), subjectID, role)
	require.NoError(t, err)
	return token
}

func (g *guardedApp) request(t *testing.T, method, path, token string, asCookie bool) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		if asCookie {
			req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := g.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestGuardMiddleware(t *testing.T) {
	g := newGuardedApp(t)
	student := g.tokenFor(t, "student-1", domain.RoleStudent)
	admin := g.tokenFor(t, "admin-1", domain.RoleAdmin)
	pending := g.tokenFor(t, "pending-1", domain.RoleUnassigned)

	t.Run("anonymous denied", func(t *testing.T) {
		resp := g.request(t, "GET", "/students", "", false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("student via bearer header", func(t *testing.T) {
		resp := g.request(t, "GET", "/students", student, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("student via cookie", func(t *testing.T) {
		resp := g.request(t, "GET", "/students", student, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("student cannot reach admin", func(t *testing.T) {
		resp := g.request(t, "GET", "/admin", student, false)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin reaches student area", func(t *testing.T) {
		resp := g.request(t, "GET", "/students", admin, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("pending denied on role-gated route", func(t *testing.T) {
		resp := g.request(t, "GET", "/students", pending, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("pending admitted to role selection", func(t *testing.T) {
		resp := g.request(t, "POST", "/role", pending, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("anonymous denied role selection", func(t *testing.T) {
		resp := g.request(t, "POST", "/role", "", false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRedirectGuard(t *testing.T) {
	g := newGuardedApp(t)

	t.Run("anonymous goes to login", func(t *testing.T) {
		resp := g.request(t, "GET", "/page", "", false)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("pending goes to role selection", func(t *testing.T) {
		token := g.tokenFor(t, "pending-1", domain.RoleUnassigned)
		resp := g.request(t, "GET", "/page", token, false)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/seleccionar-rol", resp.Header.Get("Location"))
	})

	t.Run("wrong role goes to unauthorized", func(t *testing.T) {
		corp := g.tokenFor(t, "corp-1", domain.RoleCorporate)
		resp := g.request(t, "GET", "/page", corp, false)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))
	})

	t.Run("student passes through", func(t *testing.T) {
		token := g.tokenFor(t, "student-1", domain.RoleStudent)
		resp := g.request(t, "GET", "/page", token, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
