package handlers

import (
	"github.com/balu-property/damage-service/internal/api/dto"
	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/service"
)

func damageSummary(t *domain.Ticket) dto.DamageSummary {
	return dto.DamageSummary{
		ID:                t.ID,
		Number:            t.Number,
		Title:             t.Title,
		Status:            t.Status,
		Party:             t.Party,
		ApartmentID:       t.ApartmentID,
		ReporterID:        t.ReporterID,
		ReporterRole:      t.ReporterRole,
		AssignedCompanyID: t.AssignedCompanyID,
		InternalReference: t.InternalReference,
		ScheduledAt:       t.ScheduledAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func damageDetail(info *service.TicketInfo) dto.DamageDetail {
	t := info.Ticket
	out := dto.DamageDetail{
		DamageSummary:      damageSummary(t),
		Description:        t.Description,
		DeviceAffected:     t.DeviceAffected,
		BarCode:            t.BarCode,
		CategoryID:         t.CategoryID,
		CategoryName:       info.CategoryName,
		FloorPlanImage:     t.FloorPlanImage,
		LocationImage:      t.LocationImage,
		JanitorLoopedIn:    t.JanitorLoopedIn,
		PreferredCompanyID: t.PreferredCompanyID,
		CompanyAssignedBy:  t.CompanyAssignedBy,
		RepairConfirmedAt:  t.RepairConfirmedAt,
		Images:             attachments(t.Images),
		Offers:             offerResponses(info.Offers),
		Requests:           requestResponses(info.Requests),
		Defects:            make([]dto.DefectResponse, 0, len(info.Defects)),
		Log:                auditResponses(info.Log),
		NextStatuses:       info.NextStatuses,
		ReadOnly:           info.ReadOnly,
	}
	if out.NextStatuses == nil {
		out.NextStatuses = []domain.Status{}
	}
	for i := range info.Defects {
		out.Defects = append(out.Defects, defectResponse(&info.Defects[i]))
	}
	if info.Rating != nil {
		out.Rating = ratingResponse(info.Rating)
	}
	return out
}

func transitionResponse(res *service.TransitionResult) dto.TransitionResponse {
	out := dto.TransitionResponse{
		From:     res.From,
		To:       res.To,
		Damage:   damageSummary(res.Ticket),
		Requests: requestResponses(res.Requests),
	}
	if res.Offer != nil {
		offer := offerResponse(res.Offer)
		out.Offer = &offer
	}
	if res.Defect != nil {
		defect := defectResponse(res.Defect)
		out.Defect = &defect
	}
	if res.Audit != nil {
		out.LogSeq = res.Audit.Seq
	}
	return out
}

func offerResponse(o *domain.DamageOffer) dto.OfferResponse {
	fields := o.CustomFields
	if fields == nil {
		fields = []domain.CustomField{}
	}
	return dto.OfferResponse{
		ID:           o.ID,
		DamageID:     o.TicketID,
		CompanyID:    o.CompanyID,
		Amount:       o.Amount,
		Description:  o.Description,
		CustomFields: fields,
		PriceSplit:   o.PriceSplit,
		Accepted:     o.Accepted,
		State:        o.State,
		RejectReason: o.RejectReason,
		Attachments:  attachments(o.Attachments),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func offerResponses(offers []domain.DamageOffer) []dto.OfferResponse {
	out := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		out = append(out, offerResponse(&offers[i]))
	}
	return out
}

func requestResponses(requests []domain.DamageRequest) []dto.DamageRequestResponse {
	out := make([]dto.DamageRequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, dto.DamageRequestResponse{
			ID:               r.ID,
			DamageID:         r.TicketID,
			CompanyID:        r.CompanyID,
			Email:            r.Email,
			WithOffer:        r.WithOffer,
			RequestedBy:      r.RequestedBy,
			RequestedDate:    r.RequestedDate,
			NewRequestedDate: r.NewRequestedDate,
			State:            r.State,
			CreatedAt:        r.CreatedAt,
		})
	}
	return out
}

func defectResponse(d *domain.Defect) dto.DefectResponse {
	return dto.DefectResponse{
		ID:          d.ID,
		Number:      d.Number,
		Title:       d.Title,
		Description: d.Description,
		RaisedBy:    d.RaisedBy,
		Attachments: attachments(d.Attachments),
		CreatedAt:   d.CreatedAt,
	}
}

func ratingResponse(r *domain.Rating) *dto.RatingResponse {
	return &dto.RatingResponse{
		ID:        r.ID,
		Score:     r.Score,
		Comment:   r.Comment,
		RatedBy:   r.RatedBy,
		CreatedAt: r.CreatedAt,
	}
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AuditEntryResponse{
			Seq:        e.Seq,
			ActorID:    e.ActorID,
			ActorRole:  e.ActorRole,
			EventType:  e.EventType,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Payload:    e.Payload,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func attachments(in []domain.Attachment) []domain.Attachment {
	if in == nil {
		return []domain.Attachment{}
	}
	return in
}
