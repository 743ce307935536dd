package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/money"
)

// Handler exposes account HTTP endpoints. Ownership guards run before it.
type Handler struct {
	service    *Service
	authorizer *authz.Authorizer
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, authorizer *authz.Authorizer) *Handler {
	return &Handler{service: service, authorizer: authorizer}
}

type createRequest struct {
	OwnerID  string `json:"owner_id"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
	Name     string `json:"name"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type entryResponse struct {
	ID         string    `json:"id"`
	TransferID string    `json:"transfer_id,omitempty"`
	Kind       string    `json:"kind"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// Create provisions an account. The owner defaults to the caller; naming
// another owner requires the admin role.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(err.Error())
	}
	caller, ok := authz.CallerFrom(c.UserContext())
	if !ok {
		return toAPIError(authz.ErrUnauthenticated)
	}

	owner := caller.UserID
	if req.OwnerID != "" {
		parsed, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return apierr.BadRequest("owner_id must be a uuid")
		}
		if err := h.authorizer.RequireIdentity(c.UserContext(), parsed); err != nil {
			return toAPIError(err)
		}
		owner = parsed
	}

	acc, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:  owner,
		Kind:     Kind(req.Kind),
		Currency: req.Currency,
		Name:     req.Name,
	})
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(acc))
}

// Get returns a single account.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return apierr.BadRequest("accountId must be a uuid")
	}
	acc, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return toAPIError(err)
	}
	return c.JSON(toResponse(acc))
}

// ListMine returns the caller's accounts.
func (h *Handler) ListMine(c *fiber.Ctx) error {
	caller, ok := authz.CallerFrom(c.UserContext())
	if !ok {
		return toAPIError(authz.ErrUnauthenticated)
	}
	accounts, err := h.service.ListByOwner(c.UserContext(), caller.UserID)
	if err != nil {
		return toAPIError(err)
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toResponse(acc))
	}
	return c.JSON(fiber.Map{"accounts": out})
}

// Balance returns the ledger-derived balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return apierr.BadRequest("accountId must be a uuid")
	}
	balance, err := h.service.Balance(c.UserContext(), id)
	if err != nil {
		return toAPIError(err)
	}
	return c.JSON(fiber.Map{
		"account_id": balance.AccountID.String(),
		"currency":   balance.Currency,
		"balance":    money.Format(balance.Amount),
		"as_of":      balance.AsOf,
	})
}

// Entries returns the account's ledger entries.
func (h *Handler) Entries(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return apierr.BadRequest("accountId must be a uuid")
	}
	entries, err := h.service.Entries(c.UserContext(), id)
	if err != nil {
		return toAPIError(err)
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.JSON(fiber.Map{"account_id": id.String(), "entries": out})
}

func toResponse(acc Account) accountResponse {
	return accountResponse{
		ID:        acc.ID.String(),
		OwnerID:   acc.OwnerID.String(),
		Kind:      string(acc.Kind),
		Currency:  acc.Currency,
		Status:    string(acc.Status),
		Name:      acc.Name,
		CreatedAt: acc.CreatedAt,
	}
}

func toEntryResponse(e ledger.Entry) entryResponse {
	out := entryResponse{
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		Amount:    money.Format(e.Amount),
		Currency:  e.Currency,
		CreatedAt: e.CreatedAt,
	}
	if e.TransferID != nil {
		out.TransferID = e.TransferID.String()
	}
	return out
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrDuplicateAccount):
		return apierr.New(http.StatusConflict, "duplicate_account", err.Error())
	case errors.Is(err, ErrInvalidCurrency):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_currency", err.Error())
	case errors.Is(err, ErrInvalidKind):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_kind", err.Error())
	case errors.Is(err, authz.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, authz.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err.Error())
	default:
		return err
	}
}
