package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/balu-property/damage-service/internal/api/dto"
	"github.com/balu-property/damage-service/internal/service"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// OffersHandler serves offers, company requests and guest reconciliation.
type OffersHandler struct {
	offers *service.OfferService
}

// NewOffersHandler constructs handler.
func NewOffersHandler(offers *service.OfferService) *OffersHandler {
	return &OffersHandler{offers: offers}
}

// List GET /damages/:id/offers.
func (h *OffersHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	offers, err := h.offers.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": offerResponses(offers)})
}

// Create POST /damages/:id/offers.
func (h *OffersHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateOfferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	offer, err := h.offers.CreateOffer(c.UserContext(), actor, c.Params("id"), req.CurrentStatus, service.OfferInput{
		Amount:         req.Amount,
		Description:    req.Description,
		CustomFields:   req.CustomFields,
		PriceSplit:     req.PriceSplit,
		AttachmentRefs: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": offerResponse(offer)})
}

// RequestOffer POST /damages/:id/requests.
func (h *OffersHandler) RequestOffer(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RequestOfferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var requestedDate *time.Time
	if req.RequestedDate != "" {
		d, err := time.Parse(workflow.DateLayout, req.RequestedDate)
		if err != nil {
			return apperrors.NewValidationError("requested_date must be YYYY-MM-DD", nil)
		}
		requestedDate = &d
	}
	requests, err := h.offers.RequestOffer(c.UserContext(), actor, c.Params("id"), service.RequestTargets{
		CompanyIDs:    req.CompanyIDs,
		CompanyEmails: req.CompanyEmails,
	}, requestedDate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponses(requests)})
}

// Accept POST /offers/:id/accept.
func (h *OffersHandler) Accept(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DecideOfferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.offers.AcceptOffer(c.UserContext(), actor, c.Params("id"), req.CurrentStatus)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(res)})
}

// Reject POST /offers/:id/reject.
func (h *OffersHandler) Reject(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DecideOfferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.offers.RejectOffer(c.UserContext(), actor, c.Params("id"), req.Reason, req.CurrentStatus)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(res)})
}

// RegisterRequest POST /companies/damage-requests/register.
// Binds invitations sent to the calling company's registered e-mail.
func (h *OffersHandler) RegisterRequest(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RegisterDamageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	changed, err := h.offers.RegisterDamageRequestIfNotExists(c.UserContext(), req.DamageID, actor.ID, "")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponses(changed)})
}

// VerifyGuest POST /guest/damage-requests/verify.
func (h *OffersHandler) VerifyGuest(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.VerifyGuestRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	bound, err := h.offers.VerifyGuest(c.UserContext(), actor, req.DamageID, req.Email, req.Code, req.CompanyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponses(bound)})
}
