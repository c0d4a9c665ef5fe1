package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
)

type AttendeeHandler struct {
	auth      Authorizer
	attendees *directory.Attendees
}

func NewAttendeeHandler(authorizer Authorizer, attendees *directory.Attendees) *AttendeeHandler {
	return &AttendeeHandler{auth: authorizer, attendees: attendees}
}

type AttendeeListRequest struct {
	auth.AuthInput
	Query  string `query:"q" doc:"Search over name, email and phone"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100"`
	Offset int    `query:"offset" minimum:"0"`
}

type AttendeeListResponse struct {
	Body struct {
		Items  []models.Attendee `json:"items"`
		Total  int64             `json:"total"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
	}
}

func (h *AttendeeHandler) HandleList(ctx context.Context, input *AttendeeListRequest) (*AttendeeListResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	limit, offset := pageOf(input.Limit, input.Offset, 20, 100)
	items, total, err := h.attendees.List(ctx, input.Query, limit, offset)
	if err != nil {
		logrus.WithError(err).Error("listing attendees")
		return nil, huma.Error500InternalServerError("Erro ao listar participantes.")
	}

	resp := &AttendeeListResponse{}
	resp.Body.Items = items
	resp.Body.Total = total
	resp.Body.Limit = limit
	resp.Body.Offset = offset
	return resp, nil
}

type AttendeeUpdateRequest struct {
	auth.AuthInput
	ID   string `path:"id"`
	Body struct {
		Name           *string `json:"name,omitempty"`
		Phone          *string `json:"phone,omitempty"`
		Email          *string `json:"email,omitempty"`
		ShirtSize      *string `json:"shirt_size,omitempty"`
		IsLegendario   *bool   `json:"is_legendario,omitempty"`
		ReferralSource *string `json:"referral_source,omitempty"`
		Notes          *string `json:"notes,omitempty"`
	}
}

type AttendeeResponse struct {
	Body struct {
		Success bool             `json:"success"`
		Data    *models.Attendee `json:"data"`
	}
}

func (h *AttendeeHandler) HandleUpdate(ctx context.Context, input *AttendeeUpdateRequest) (*AttendeeResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	b := input.Body
	attendee, err := h.attendees.Update(ctx, input.ID, directory.AttendeePatch{
		Name:           b.Name,
		Phone:          b.Phone,
		Email:          b.Email,
		ShirtSize:      b.ShirtSize,
		IsLegendario:   b.IsLegendario,
		ReferralSource: b.ReferralSource,
		Notes:          b.Notes,
	})
	if err != nil {
		return nil, attendeeError(err, input.ID)
	}

	resp := &AttendeeResponse{}
	resp.Body.Success = true
	resp.Body.Data = attendee
	return resp, nil
}

type AttendeeDeleteRequest struct {
	auth.AuthInput
	ID string `path:"id"`
}

type AttendeeDeleteResponse struct {
	Body struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
}

// HandleDelete refuses attendees with tickets; their history stays.
func (h *AttendeeHandler) HandleDelete(ctx context.Context, input *AttendeeDeleteRequest) (*AttendeeDeleteResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	if err := h.attendees.Delete(ctx, input.ID); err != nil {
		return nil, attendeeError(err, input.ID)
	}

	resp := &AttendeeDeleteResponse{}
	resp.Body.Success = true
	resp.Body.ID = input.ID
	return resp, nil
}

func attendeeError(err error, id string) error {
	switch {
	case errors.Is(err, directory.ErrAttendeeNotFound):
		return huma.Error404NotFound("Registro não encontrado.")
	case errors.Is(err, directory.ErrEmailTaken):
		return huma.Error409Conflict("Este e-mail já está cadastrado.")
	case errors.Is(err, directory.ErrAttendeeHasTickets):
		return huma.Error409Conflict("Participante possui ingressos e não pode ser removido.")
	case errors.Is(err, directory.ErrInvalidAttendee):
		return huma.Error400BadRequest(err.Error())
	}
	logrus.WithError(err).WithField("attendee_id", id).Error("attendee change failed")
	return huma.Error500InternalServerError("Erro ao salvar participante.")
}
