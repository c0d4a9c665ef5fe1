package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/checkin"
	"github.com/lamanada/tickets-api/internal/ledger"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
)

// Authorizer resolves the staff session carried in a Cookie header.
type Authorizer interface {
	Authorize(cookieHeader string) (string, error)
}

type CheckinHandler struct {
	auth     Authorizer
	toggler  *checkin.Toggler
	checkins *ledger.Checkins
}

func NewCheckinHandler(authorizer Authorizer, toggler *checkin.Toggler, checkins *ledger.Checkins) *CheckinHandler {
	return &CheckinHandler{auth: authorizer, toggler: toggler, checkins: checkins}
}

// ScanError is the scanner's rejection payload.
type ScanError struct {
	status  int
	Success bool         `json:"success"`
	Message string       `json:"error"`
	Code    checkin.Code `json:"code"`
}

func (e *ScanError) Error() string {
	return e.Message
}

func (e *ScanError) GetStatus() int {
	return e.status
}

var scanStatus = map[checkin.Code]int{
	checkin.CodeInvalidRequest: http.StatusBadRequest,
	checkin.CodeTicketNotFound: http.StatusNotFound,
	checkin.CodeNotPaid:        http.StatusPaymentRequired,
	checkin.CodeAlreadyIn:      http.StatusConflict,
	checkin.CodeNotIn:          http.StatusConflict,
}

type ToggleRequest struct {
	auth.AuthInput
	Body struct {
		EntryToken  string `json:"entry_token,omitempty" doc:"Value read from the QR code"`
		QRCodeValue string `json:"qrCodeValue,omitempty" doc:"Older scanner clients send the token here"`
		Action      string `json:"action,omitempty" doc:"checkin (default) or checkout"`
	}
}

type ScanAttendee struct {
	Name         string `json:"name"`
	IsLegendario bool   `json:"is_legendario"`
}

type ScanTicket struct {
	ID          string           `json:"id"`
	CheckInDate *time.Time       `json:"check_in_date"`
	Attendee    ScanAttendee     `json:"attendee"`
	EntryToken  string           `json:"entry_token"`
	Direction   models.Direction `json:"direction"`
	At          time.Time        `json:"at"`
}

type ToggleResponse struct {
	Body struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		Ticket  ScanTicket `json:"ticket"`
	}
}

func (h *CheckinHandler) HandleToggle(ctx context.Context, input *ToggleRequest) (*ToggleResponse, error) {
	staffID, err := h.auth.Authorize(input.Cookie)
	if err != nil {
		return nil, err
	}

	token := input.Body.EntryToken
	if token == "" {
		token = input.Body.QRCodeValue
	}

	action, err := checkin.ParseAction(input.Body.Action)
	if err == nil {
		var conf checkin.Confirmation
		conf, err = h.toggler.Toggle(ctx, token, action, &staffID)
		if err == nil {
			return toggleResponse(conf), nil
		}
	}

	var e *checkin.Error
	if errors.As(err, &e) {
		return nil, &ScanError{status: scanStatus[e.Code], Message: e.Message, Code: e.Code}
	}
	logrus.WithError(err).WithField("staff_id", staffID).Error("check-in toggle failed")
	return nil, huma.Error500InternalServerError("Erro ao registrar movimento.")
}

func toggleResponse(conf checkin.Confirmation) *ToggleResponse {
	resp := &ToggleResponse{}
	resp.Body.Success = true
	resp.Body.Message = conf.Message
	resp.Body.Ticket = ScanTicket{
		ID:          conf.TicketID,
		CheckInDate: conf.CheckInDate,
		Attendee:    ScanAttendee{Name: conf.AttendeeName, IsLegendario: conf.IsLegendario},
		EntryToken:  conf.EntryToken,
		Direction:   conf.Direction,
		At:          conf.At,
	}
	return resp
}

type CheckinListRequest struct {
	auth.AuthInput
	Query  string `query:"q" doc:"Search over attendee name and email"`
	Inside string `query:"inside" doc:"all, in or out"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100"`
	Offset int    `query:"offset" minimum:"0"`
}

type CheckinListResponse struct {
	Body struct {
		Items  []ledger.Row `json:"items"`
		Total  int64        `json:"total"`
		Limit  int          `json:"limit"`
		Offset int          `json:"offset"`
	}
}

func (h *CheckinHandler) HandleList(ctx context.Context, input *CheckinListRequest) (*CheckinListResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	filter := ledger.Filter{
		Query:  input.Query,
		Inside: ledger.ParseInsideFilter(input.Inside),
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	rows, total, err := h.checkins.List(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("listing check-ins")
		return nil, huma.Error500InternalServerError("Erro ao listar check-ins.")
	}

	resp := &CheckinListResponse{}
	resp.Body.Items = rows
	resp.Body.Total = total
	resp.Body.Limit, resp.Body.Offset = pageOf(input.Limit, input.Offset, ledger.DefaultListLimit, ledger.MaxListLimit)
	return resp, nil
}

type HistoryRequest struct {
	auth.AuthInput
	TicketID string `path:"ticketId"`
}

type HistoryResponse struct {
	Body struct {
		TicketID string                `json:"ticket_id"`
		Inside   bool                  `json:"inside"`
		Items    []models.CheckinEvent `json:"items"`
	}
}

// HandleHistory lists every movement of a ticket, oldest first.
func (h *CheckinHandler) HandleHistory(ctx context.Context, input *HistoryRequest) (*HistoryResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	events, err := h.checkins.History(ctx, input.TicketID)
	if err != nil {
		logrus.WithError(err).WithField("ticket_id", input.TicketID).Error("loading check-in history")
		return nil, huma.Error500InternalServerError("Erro ao carregar histórico.")
	}

	resp := &HistoryResponse{}
	resp.Body.TicketID = input.TicketID
	resp.Body.Items = events
	if len(events) > 0 {
		resp.Body.Inside = ledger.Inside(&events[len(events)-1])
	}
	return resp, nil
}

func pageOf(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
