package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stp-platform/tokend/internal/middleware"
	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/internal/token"
	"github.com/stp-platform/tokend/pkg/utils"
)

type TokensHandler struct {
	Tokens *token.Service
}

func NewTokensHandler(tokens *token.Service) *TokensHandler {
	return &TokensHandler{Tokens: tokens}
}

type issueTokenRequest struct {
	OwnerID       int64               `json:"ownerID"`
	Name          string              `json:"name"`
	Description   *string             `json:"description"`
	ExpiresInDays *int                `json:"expiresInDays"`
	Permissions   *models.Permissions `json:"permissions"`
}

type issueTokenResponse struct {
	// Token is the raw secret, shown here and never again.
	Token    string       `json:"token"`
	APIToken models.Token `json:"apiToken"`
}

func (h *TokensHandler) Create(c *fiber.Ctx) error {
	current := middleware.GetCurrentToken(c)
	if current == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req issueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if len(req.Name) > 100 {
		return utils.Error(c, fiber.StatusBadRequest, "name must be 100 characters or less")
	}
	if req.OwnerID <= 0 {
		return utils.Error(c, fiber.StatusBadRequest, "ownerID is required")
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays < 1 {
		return utils.Error(c, fiber.StatusBadRequest, "expiresInDays must be positive")
	}

	createdBy := current.OwnerID
	raw, tok, err := h.Tokens.Issue(c.UserContext(), token.IssueParams{
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		Description:   req.Description,
		ExpiresInDays: req.ExpiresInDays,
		Permissions:   req.Permissions,
		CreatedBy:     &createdBy,
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to issue token")
	}

	return utils.Success(c, fiber.StatusCreated, issueTokenResponse{
		Token:    raw,
		APIToken: *tok,
	})
}

func (h *TokensHandler) List(c *fiber.Ctx) error {
	current := middleware.GetCurrentToken(c)
	if current == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	ownerID := current.OwnerID
	if raw := c.Query("ownerID"); raw != "" {
		parsed, err := parseID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid ownerID")
		}
		ownerID = parsed
	}

	p := utils.ParsePagination(c)
	tokens, total, err := h.Tokens.ListForOwner(c.UserContext(), ownerID, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list tokens")
	}

	return utils.Paginated(c, tokens, p, total)
}

func (h *TokensHandler) Suspend(c *fiber.Ctx) error {
	return h.applyTransition(c, h.Tokens.Suspend)
}

func (h *TokensHandler) Resume(c *fiber.Ctx) error {
	return h.applyTransition(c, h.Tokens.Resume)
}

func (h *TokensHandler) applyTransition(c *fiber.Ctx, op func(ctx context.Context, id int64) error) error {
	tokenID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid token ID")
	}

	switch err := op(c.UserContext(), tokenID); {
	case errors.Is(err, token.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "token not found")
	case errors.Is(err, token.ErrRevoked):
		return utils.Error(c, fiber.StatusConflict, "token is revoked")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "token updated"})
}

func (h *TokensHandler) Revoke(c *fiber.Ctx) error {
	tokenID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid token ID")
	}

	switch err := h.Tokens.Revoke(c.UserContext(), tokenID); {
	case errors.Is(err, token.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "token not found")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed to revoke token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "token revoked"})
}

type extendTokenRequest struct {
	Days int `json:"days"`
}

func (h *TokensHandler) Extend(c *fiber.Ctx) error {
	tokenID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid token ID")
	}

	var req extendTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Days < 1 {
		return utils.Error(c, fiber.StatusBadRequest, "days must be positive")
	}

	tok, err := h.Tokens.Extend(c.UserContext(), tokenID, req.Days)
	if errors.Is(err, token.ErrNotFound) {
		return utils.Error(c, fiber.StatusNotFound, "token not found")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to extend token")
	}

	return utils.Success(c, fiber.StatusOK, tok)
}

// Check exposes the permission evaluator for the authenticated token, so
// integrating services can probe capabilities without attempting the
// guarded call.
func (h *TokensHandler) Check(c *fiber.Ctx) error {
	current := middleware.GetCurrentToken(c)
	if current == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	resource := c.Query("resource")
	action := c.Query("action")
	if resource == "" || action == "" {
		return utils.Error(c, fiber.StatusBadRequest, "resource and action are required")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"resource": resource,
		"action":   action,
		"allowed":  current.Permissions.Allows(resource, action),
	})
}
