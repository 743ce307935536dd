package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
	"github.com/congo-pay/merchant_ledger/internal/logging"
)

var (
	testSecret   = []byte("test-secret")
	errNoAccount = errors.New("account not found")
)

type owners map[uuid.UUID]uuid.UUID

func (o owners) OwnerOf(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	owner, ok := o[id]
	if !ok {
		return uuid.Nil, errNoAccount
	}
	return owner, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, errNoAccount) {
		return apierr.New(http.StatusNotFound, "not_found", err.Error())
	}
	return err
}

func newGuardedApp(a *authz.Authorizer, parties PartiesLookup) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler(logging.Discard(), RequestIDHeader)})
	app.Use(RequestID(), JWTAuth(testSecret))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }
	app.Get("/accounts/:accountId", RequireAccountAccess(a, ParamUUID("accountId"), mapNotFound), ok)
	app.Post("/transfers", RequireAccountAccess(a, BodyUUID("from_account_id"), mapNotFound), ok)
	app.Post("/transfers/:transferId/post", RequireTransferAccess(a, parties, true, mapNotFound), ok)
	app.Get("/transfers/:transferId", RequireTransferAccess(a, parties, false, mapNotFound), ok)
	app.Get("/admin", RequireAdmin(a), ok)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, user uuid.UUID) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != uuid.Nil {
		token, err := IssueToken(testSecret, user, time.Minute)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestGuards(t *testing.T) {
	alice, bob, admin := uuid.New(), uuid.New(), uuid.New()
	aliceAcc, bobAcc := uuid.New(), uuid.New()
	transferID := uuid.New()

	roles := authz.NewMemoryRoleStore()
	roles.Grant(admin, authz.RoleAdmin)
	a := authz.NewAuthorizer(owners{aliceAcc: alice, bobAcc: bob}, roles)
	parties := func(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
		if id != transferID {
			return nil, errNoAccount
		}
		return []uuid.UUID{aliceAcc, bobAcc}, nil
	}
	app := newGuardedApp(a, parties)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		user   uuid.UUID
		want   int
	}{
		{"no token", http.MethodGet, "/accounts/" + aliceAcc.String(), "", uuid.Nil, http.StatusUnauthorized},
		{"owner reads account", http.MethodGet, "/accounts/" + aliceAcc.String(), "", alice, http.StatusNoContent},
		{"stranger reads account", http.MethodGet, "/accounts/" + aliceAcc.String(), "", bob, http.StatusForbidden},
		{"admin reads account", http.MethodGet, "/accounts/" + aliceAcc.String(), "", admin, http.StatusNoContent},
		{"unknown account", http.MethodGet, "/accounts/" + uuid.NewString(), "", alice, http.StatusNotFound},
		{"malformed account id", http.MethodGet, "/accounts/nope", "", alice, http.StatusBadRequest},
		{"create from own account", http.MethodPost, "/transfers", `{"from_account_id":"` + aliceAcc.String() + `"}`, alice, http.StatusNoContent},
		{"create from foreign account", http.MethodPost, "/transfers", `{"from_account_id":"` + aliceAcc.String() + `"}`, bob, http.StatusForbidden},
		{"source owner posts", http.MethodPost, "/transfers/" + transferID.String() + "/post", "", alice, http.StatusNoContent},
		{"destination owner cannot post", http.MethodPost, "/transfers/" + transferID.String() + "/post", "", bob, http.StatusForbidden},
		{"destination owner reads", http.MethodGet, "/transfers/" + transferID.String(), "", bob, http.StatusNoContent},
		{"unknown transfer", http.MethodGet, "/transfers/" + uuid.NewString(), "", bob, http.StatusNotFound},
		{"admin route denied", http.MethodGet, "/admin", "", alice, http.StatusForbidden},
		{"admin route allowed", http.MethodGet, "/admin", "", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, app, tt.method, tt.path, tt.body, tt.user))
		})
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	user := uuid.New()
	token, err := IssueToken(testSecret, user, time.Minute)
	require.NoError(t, err)

	got, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = ParseToken(token, []byte("other-secret"))
	assert.Error(t, err)

	expired, err := IssueToken(testSecret, user, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, testSecret)
	assert.Error(t, err)
}

func TestTransferRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler(logging.Discard(), RequestIDHeader)})
	app.Use(JWTAuth(testSecret))
	app.Post("/transfers", TransferRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})

	alice, bob := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/transfers", "{}", alice))
	assert.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/transfers", "{}", alice))
	assert.Equal(t, http.StatusTooManyRequests, do(t, app, http.MethodPost, "/transfers", "{}", alice))
	assert.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/transfers", "{}", bob))

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/transfers", "{}", alice))
}
