package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/scheduler"
)

// Scheduler admits sync operations.
type Scheduler interface {
	ScheduleSync() bool
	ScheduleSyncForOneToOneConversation(contact string) bool
	ScheduleSyncForGroupConversation(chatID string) bool
	ScheduleSyncForDataConnection() bool
	SchedulePushMessages(contact string) bool
	ScheduleUpdateFlags() bool
	CurrentOperation() (scheduler.Operation, bool)
	HasPendingPeriodic() bool
}

var _ Scheduler = (*scheduler.Scheduler)(nil)

const (
	ScopeAll            = "all"
	ScopeContact        = "contact"
	ScopeGroup          = "group"
	ScopeDataConnection = "data_connection"
)

// SyncRequest selects what to synchronize. ID is the contact or chat id.
type SyncRequest struct {
	Scope string `json:"scope" validate:"required,oneof=all contact group data_connection"`
	ID    string `json:"id" validate:"required_if=Scope contact,required_if=Scope group"`
}

// PushRequest selects the conversation whose queued messages are uploaded.
type PushRequest struct {
	Contact string `json:"contact"`
}

// StatusResponse describes the scheduler state.
type StatusResponse struct {
	Operation       string `json:"operation,omitempty"`
	Param           string `json:"param,omitempty"`
	PendingPeriodic bool   `json:"pending_periodic"`
}

// SyncHandler serves the scheduling endpoints.
type SyncHandler struct {
	scheduler Scheduler
	log       logrus.FieldLogger
}

func NewSyncHandler(s Scheduler, log logrus.FieldLogger) *SyncHandler {
	return &SyncHandler{scheduler: s, log: log.WithField("handler", "sync")}
}

// Sync schedules a sync. 202 means admitted, 200 means refused by the scheduler.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decodeJSON(w, r, h.log, &req) {
		return
	}

	var scheduled bool
	switch req.Scope {
	case ScopeAll:
		scheduled = h.scheduler.ScheduleSync()
	case ScopeContact:
		scheduled = h.scheduler.ScheduleSyncForOneToOneConversation(req.ID)
	case ScopeGroup:
		scheduled = h.scheduler.ScheduleSyncForGroupConversation(req.ID)
	case ScopeDataConnection:
		scheduled = h.scheduler.ScheduleSyncForDataConnection()
	}

	h.log.WithFields(logrus.Fields{"scope": req.Scope, "id": req.ID, "scheduled": scheduled}).Debug("Sync requested")
	writeJSON(w, h.log, scheduleStatus(scheduled), ScheduleResponse{Scheduled: scheduled})
}

// Push schedules the upload of queued messages.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.log, &req) {
		return
	}
	scheduled := h.scheduler.SchedulePushMessages(req.Contact)
	writeJSON(w, h.log, scheduleStatus(scheduled), ScheduleResponse{Scheduled: scheduled})
}

// UpdateFlags schedules the upload of pending read and delete reports.
func (h *SyncHandler) UpdateFlags(w http.ResponseWriter, _ *http.Request) {
	scheduled := h.scheduler.ScheduleUpdateFlags()
	writeJSON(w, h.log, scheduleStatus(scheduled), ScheduleResponse{Scheduled: scheduled})
}

// Status reports the operation in flight.
func (h *SyncHandler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{PendingPeriodic: h.scheduler.HasPendingPeriodic()}
	if op, ok := h.scheduler.CurrentOperation(); ok {
		resp.Operation = op.Type.String()
		resp.Param = op.Param
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}
