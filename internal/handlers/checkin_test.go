package handlers

import (
	"encoding/json"
	"testing"

	"github.com/lamanada/tickets-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) toggle(body map[string]any) (int, map[string]any) {
	resp := e.api.Post("/checkin/toggle", e.cookie, body)
	out := map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	return resp.Code, out
}

func TestToggle_FullCycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.paidToken(t, "ana@example.com")

	code, body := env.toggle(map[string]any{"entry_token": token, "action": "checkin"})
	require.Equal(t, 200, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Check-in realizado.", body["message"])
	assert.NotContains(t, body, "ticket_id")
	ticket := body["ticket"].(map[string]any)
	var stored models.Ticket
	require.NoError(t, env.db.Where("entry_token = ?", token).First(&stored).Error)
	assert.Equal(t, stored.ID, ticket["id"])
	assert.Equal(t, "in", ticket["direction"])
	assert.NotNil(t, ticket["check_in_date"])
	assert.Equal(t, token, ticket["entry_token"])
	attendee := ticket["attendee"].(map[string]any)
	assert.Equal(t, "Ana Souza", attendee["name"])
	assert.Equal(t, true, attendee["is_legendario"])

	code, body = env.toggle(map[string]any{"entry_token": token, "action": "checkin"})
	assert.Equal(t, 409, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "ALREADY_IN", body["code"])
	assert.Equal(t, "Este ingresso já está dentro.", body["error"])

	code, body = env.toggle(map[string]any{"qrCodeValue": token, "action": "checkout"})
	require.Equal(t, 200, code, body)
	assert.Equal(t, "out", body["ticket"].(map[string]any)["direction"])
	assert.Equal(t, "Check-out realizado.", body["message"])

	code, body = env.toggle(map[string]any{"entry_token": token, "action": "checkout"})
	assert.Equal(t, 409, code)
	assert.Equal(t, "NOT_IN", body["code"])

	// Empty action means checkin.
	code, _ = env.toggle(map[string]any{"entry_token": token})
	assert.Equal(t, 200, code)

	var movements []models.CheckinEvent
	require.NoError(t, env.db.Order("seq").Find(&movements).Error)
	require.Len(t, movements, 3)
	for i, m := range movements {
		assert.Equal(t, i+1, m.Seq)
		require.NotNil(t, m.ActorID)
	}
}

func TestToggle_Rejections(t *testing.T) {
	env := newTestEnv(t)
	_, pendingPayment := env.register(t, "pendente@example.com")

	ticket, err := env.tickets.FindByPaymentID(t.Context(), pendingPayment)
	require.NoError(t, err)
	stray := "TKT_AAAAAAAAAA_BBBBBBBBBB"
	require.NoError(t, env.db.Model(ticket).Update("entry_token", stray).Error)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"UnknownToken", map[string]any{"entry_token": "TKT_nope"}, 404, "TICKET_NOT_FOUND"},
		{"NotPaid", map[string]any{"entry_token": stray}, 402, "NOT_PAID"},
		{"MissingToken", map[string]any{"action": "checkin"}, 400, "INVALID_REQUEST"},
		{"InvalidAction", map[string]any{"entry_token": stray, "action": "teleport"}, 400, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.toggle(tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.CheckinEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestToggle_RequiresStaff(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Post("/checkin/toggle", map[string]any{"entry_token": "TKT_x"})
	assert.Equal(t, 401, resp.Code)

	resp = env.api.Post("/checkin/toggle", "Cookie: auth_token=forged", map[string]any{"entry_token": "TKT_x"})
	assert.Equal(t, 401, resp.Code)
}

func TestCheckinList(t *testing.T) {
	env := newTestEnv(t)
	inside := env.paidToken(t, "ana@example.com")
	env.paidToken(t, "bia@example.com")
	env.register(t, "caio@example.com")

	code, _ := env.toggle(map[string]any{"entry_token": inside})
	require.Equal(t, 200, code)

	body := decode(t, env.api.Get("/checkin", env.cookie))
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 20, body["limit"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, true, items[0].(map[string]any)["is_inside"])

	body = decode(t, env.api.Get("/checkin?inside=in", env.cookie))
	assert.EqualValues(t, 1, body["total"])

	body = decode(t, env.api.Get("/checkin?inside=out", env.cookie))
	assert.EqualValues(t, 1, body["total"])

	body = decode(t, env.api.Get("/checkin?q=BIA", env.cookie))
	assert.EqualValues(t, 1, body["total"])

	assert.Equal(t, 401, env.api.Get("/checkin").Code)
}

func TestCheckinHistory(t *testing.T) {
	env := newTestEnv(t)
	token := env.paidToken(t, "ana@example.com")

	code, body := env.toggle(map[string]any{"entry_token": token})
	require.Equal(t, 200, code)
	ticketID := body["ticket"].(map[string]any)["id"].(string)
	code, _ = env.toggle(map[string]any{"entry_token": token, "action": "checkout"})
	require.Equal(t, 200, code)

	resp := env.api.Get("/checkin/tickets/"+ticketID+"/history", env.cookie)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	history := decode(t, resp)
	assert.Equal(t, false, history["inside"])
	items := history["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "in", items[0].(map[string]any)["direction"])
	assert.Equal(t, "out", items[1].(map[string]any)["direction"])
}
