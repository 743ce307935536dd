package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
)

// IDExtractor pulls an identifier out of the request.
type IDExtractor func(c *fiber.Ctx) (uuid.UUID, error)

// ParamUUID reads a uuid route parameter.
func ParamUUID(name string) IDExtractor {
	return func(c *fiber.Ctx) (uuid.UUID, error) {
		id, err := uuid.Parse(c.Params(name))
		if err != nil {
			return uuid.Nil, apierr.BadRequest(name + " must be a uuid")
		}
		return id, nil
	}
}

// BodyUUID reads a uuid field from a JSON body.
func BodyUUID(field string) IDExtractor {
	return func(c *fiber.Ctx) (uuid.UUID, error) {
		var body map[string]any
		if err := c.BodyParser(&body); err != nil {
			return uuid.Nil, apierr.BadRequest(err.Error())
		}
		raw, _ := body[field].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, apierr.BadRequest(field + " must be a uuid")
		}
		return id, nil
	}
}

// PartiesLookup resolves the accounts a transfer touches, source first.
type PartiesLookup func(ctx context.Context, transferID uuid.UUID) ([]uuid.UUID, error)

// ErrorMapper converts domain errors raised by lookups into HTTP errors.
type ErrorMapper func(error) error

// RequireAccountAccess passes when the caller owns the extracted account or is an admin.
func RequireAccountAccess(a *authz.Authorizer, extract IDExtractor, mapErr ErrorMapper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := extract(c)
		if err != nil {
			return err
		}
		if err := a.RequireAccountAccess(c.UserContext(), id); err != nil {
			return mapGuardError(err, mapErr)
		}
		return c.Next()
	}
}

// RequireTransferAccess passes when the caller owns one of the transfer's
// accounts or is an admin. With sourceOnly only the source account counts.
func RequireTransferAccess(a *authz.Authorizer, parties PartiesLookup, sourceOnly bool, mapErr ErrorMapper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParamUUID("transferId")(c)
		if err != nil {
			return err
		}
		accounts, err := parties(c.UserContext(), id)
		if err != nil {
			return mapGuardError(err, mapErr)
		}
		if sourceOnly && len(accounts) > 1 {
			accounts = accounts[:1]
		}
		if err := a.RequireAccountAccess(c.UserContext(), accounts...); err != nil {
			return mapGuardError(err, mapErr)
		}
		return c.Next()
	}
}

// RequireAdmin passes only for callers holding the admin role.
func RequireAdmin(a *authz.Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.RequireAdmin(c.UserContext()); err != nil {
			return mapGuardError(err, nil)
		}
		return c.Next()
	}
}

func mapGuardError(err error, mapErr ErrorMapper) error {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, authz.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err.Error())
	case mapErr != nil:
		return mapErr(err)
	default:
		return err
	}
}
