package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lamanada/tickets-api/internal/auth"
	"github.com/lamanada/tickets-api/internal/directory"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/lamanada/tickets-api/internal/report"
	"github.com/sirupsen/logrus"
)

const dayLayout = "2006-01-02"

type EventLookup interface {
	Get(ctx context.Context, id string) (*models.Event, error)
}

type ReportHandler struct {
	auth    Authorizer
	events  EventLookup
	reports *report.Reports
}

func NewReportHandler(authorizer Authorizer, events EventLookup, reports *report.Reports) *ReportHandler {
	return &ReportHandler{auth: authorizer, events: events, reports: reports}
}

type ReportRequest struct {
	auth.AuthInput
	EventID string `query:"event_id" doc:"Defaults to the active event"`
	From    string `query:"from" doc:"First day of the sales window, YYYY-MM-DD"`
	To      string `query:"to" doc:"Last day of the sales window, YYYY-MM-DD"`
}

type ReportResponse struct {
	Body *report.Report
}

func (h *ReportHandler) HandleSummary(ctx context.Context, input *ReportRequest) (*ReportResponse, error) {
	if _, err := h.auth.Authorize(input.Cookie); err != nil {
		return nil, err
	}

	if input.EventID != "" {
		_, err := h.events.Get(ctx, input.EventID)
		if errors.Is(err, directory.ErrEventNotFound) {
			return nil, huma.Error404NotFound("Evento não encontrado.")
		}
		if err != nil {
			logrus.WithError(err).WithField("event_id", input.EventID).Error("loading event")
			return nil, huma.Error500InternalServerError("Erro ao gerar relatório.")
		}
	}

	q := report.Query{EventID: input.EventID}
	var err error
	if q.From, err = parseDay(input.From); err != nil {
		return nil, huma.Error400BadRequest("from inválido, use AAAA-MM-DD.")
	}
	if q.To, err = parseDay(input.To); err != nil {
		return nil, huma.Error400BadRequest("to inválido, use AAAA-MM-DD.")
	}
	if !q.To.IsZero() {
		// Inclusive of the whole last day.
		q.To = q.To.AddDate(0, 0, 1)
	}

	rep, err := h.reports.Build(ctx, q)
	if err != nil {
		logrus.WithError(err).WithField("event_id", input.EventID).Error("building report")
		return nil, huma.Error500InternalServerError("Erro ao gerar relatório.")
	}
	return &ReportResponse{Body: rep}, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dayLayout, s)
}
