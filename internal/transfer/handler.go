package transfer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
	"github.com/congo-pay/merchant_ledger/internal/money"
)

// Handler exposes transfer HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transfer HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	ExternalRef   string `json:"external_ref"`
}

// Response is the JSON shape of a transfer.
type Response struct {
	ID            string     `json:"id"`
	FromAccountID string     `json:"from_account_id"`
	ToAccountID   string     `json:"to_account_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Description   string     `json:"description,omitempty"`
	ExternalRef   string     `json:"external_ref,omitempty"`
	InitiatedBy   string     `json:"initiated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ReversedAt    *time.Time `json:"reversed_at,omitempty"`
}

// Create records a pending transfer. The source account guard runs first.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(err.Error())
	}
	caller, ok := authz.CallerFrom(c.UserContext())
	if !ok {
		return ToAPIError(authz.ErrUnauthenticated)
	}
	from, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		return apierr.BadRequest("from_account_id must be a uuid")
	}
	to, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		return apierr.BadRequest("to_account_id must be a uuid")
	}

	t, err := h.service.Create(c.UserContext(), CreateInput{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        money.ParseUnchecked(req.Amount),
		Currency:      req.Currency,
		Description:   req.Description,
		ExternalRef:   req.ExternalRef,
		InitiatedBy:   caller.UserID,
	})
	if err != nil {
		return ToAPIError(err)
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(t))
}

// Get returns a transfer.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("transferId"))
	if err != nil {
		return apierr.BadRequest("transferId must be a uuid")
	}
	t, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return ToAPIError(err)
	}
	return c.JSON(ToResponse(t))
}

// ListByAccount returns the transfers touching an account.
func (h *Handler) ListByAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return apierr.BadRequest("accountId must be a uuid")
	}
	transfers, err := h.service.ListByAccount(c.UserContext(), id)
	if err != nil {
		return ToAPIError(err)
	}
	out := make([]Response, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, ToResponse(t))
	}
	return c.JSON(fiber.Map{"account_id": id.String(), "transfers": out})
}

// ToResponse renders a transfer for JSON output.
func ToResponse(t Transfer) Response {
	return Response{
		ID:            t.ID.String(),
		FromAccountID: t.FromAccountID.String(),
		ToAccountID:   t.ToAccountID.String(),
		Amount:        money.Format(t.Amount),
		Currency:      t.Currency,
		Status:        string(t.Status),
		Description:   t.Description,
		ExternalRef:   t.ExternalRef,
		InitiatedBy:   t.InitiatedBy.String(),
		CreatedAt:     t.CreatedAt,
		PostedAt:      t.PostedAt,
		FailureReason: t.FailureReason,
		ReversedAt:    t.ReversedAt,
	}
}

// ToAPIError maps transfer failures onto HTTP errors. Unknown errors pass through.
func ToAPIError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, account.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrInvalidState):
		return apierr.New(http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, ErrSameAccount):
		return apierr.New(http.StatusUnprocessableEntity, "same_account", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.Is(err, ErrInvalidCurrency):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_currency", err.Error())
	case errors.Is(err, authz.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, authz.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err.Error())
	default:
		return err
	}
}
