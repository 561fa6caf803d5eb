package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/balu-property/damage-service/internal/api/dto"
	"github.com/balu-property/damage-service/internal/service"
	"github.com/balu-property/damage-service/internal/workflow"
)

// DamagesHandler serves the damage endpoints for authenticated actors.
type DamagesHandler struct {
	tickets *service.TicketService
	engine  *service.WorkflowService
}

// NewDamagesHandler constructs handler.
func NewDamagesHandler(tickets *service.TicketService, engine *service.WorkflowService) *DamagesHandler {
	return &DamagesHandler{tickets: tickets, engine: engine}
}

// Create POST /damages.
func (h *DamagesHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateDamageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.UserContext(), actor, service.TicketCreateInput{
		ApartmentID:        req.ApartmentID,
		Title:              req.Title,
		Description:        req.Description,
		DeviceAffected:     req.DeviceAffected,
		BarCode:            req.BarCode,
		CategoryID:         req.CategoryID,
		PreferredCompanyID: req.PreferredCompanyID,
		FloorPlanImage:     req.FloorPlanImage,
		LocationImage:      req.LocationImage,
		LoopInJanitor:      req.LoopInJanitor,
		ImageRefs:          req.Images,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": damageSummary(ticket)})
}

// List GET /damages.
func (h *DamagesHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		Statuses:    statuses,
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
	}
	if q := c.Query("q"); q != "" {
		filter.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	tickets, err := h.tickets.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.DamageSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, damageSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /damages/:id.
func (h *DamagesHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	info, err := h.tickets.Get(c.UserContext(), actor, c.Params("id"), localeFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": damageDetail(info)})
}

// Delete DELETE /damages/:id.
func (h *DamagesHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.tickets.SoftDelete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Transition POST /damages/:id/status.
func (h *DamagesHandler) Transition(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.engine.ApplyTransition(c.UserContext(), service.TransitionCommand{
		TicketID:      c.Params("id"),
		Actor:         actor,
		To:            req.Status,
		CurrentStatus: req.CurrentStatus,
		Payload: workflow.Payload{
			Comment:           req.Comment,
			Date:              req.Date,
			Time:              req.Time,
			OfferID:           req.OfferID,
			CompanyIDs:        req.CompanyIDs,
			CompanyEmails:     req.CompanyEmails,
			RequestedDate:     req.RequestedDate,
			Amount:            req.Amount,
			Description:       req.Description,
			CustomFields:      req.CustomFields,
			PriceSplit:        req.PriceSplit,
			AttachmentRefs:    req.Attachments,
			DefectTitle:       req.DefectTitle,
			DefectDescription: req.DefectDescription,
			Signature:         req.Signature,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(res)})
}

// SetInternalReference PUT /damages/:id/internal-reference.
func (h *DamagesHandler) SetInternalReference(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.InternalReferenceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.SetInternalReferenceNumber(c.UserContext(), actor, c.Params("id"), req.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": damageSummary(ticket)})
}

// Logs GET /damages/:id/logs.
func (h *DamagesHandler) Logs(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

// Rate POST /damages/:id/rating.
func (h *DamagesHandler) Rate(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RatingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rating, err := h.tickets.Rate(c.UserContext(), actor, c.Params("id"), req.Score, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ratingResponse(rating)})
}

// Share POST /damages/:id/share.
func (h *DamagesHandler) Share(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	link, err := h.tickets.IssueShareToken(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.ShareLinkResponse{
		Token:     link.Token,
		ExpiresAt: link.ExpiresAt,
	}})
}
