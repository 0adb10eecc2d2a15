package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emochat/internal/metrics"
	"emochat/internal/registration"
	"emochat/internal/session"
)

// Event types as they appear on the wire
const (
	EventShowMessage             = "show_message"
	EventShowPrivacyPolicyDialog = "show_privacy_policy_dialog"
	EventHideKeyboard            = "hide_keyboard"
	EventSendVerificationCode    = "send_verification_code"
	EventNavigateBackWithResult  = "navigate_back_with_result"
)

// EventResponse is a one-shot event. The verification code and the password
// are never serialized.
type EventResponse struct {
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	ID      string             `json:"id,omitempty"`
	User    *registration.User `json:"user,omitempty"`
}

// ViewResponse is the state of a registration session
type ViewResponse struct {
	SessionID             string         `json:"session_id"`
	RemainingMillis       *int64         `json:"remaining_millis"`
	Verified              bool           `json:"verified"`
	AgreedToPrivacyPolicy bool           `json:"agreed_to_privacy_policy"`
	Event                 *EventResponse `json:"event"`
}

func newViewResponse(v session.View) ViewResponse {
	return ViewResponse{
		SessionID:             v.SessionID,
		RemainingMillis:       v.RemainingMillis,
		Verified:              v.Verified,
		AgreedToPrivacyPolicy: v.AgreedToPrivacyPolicy,
		Event:                 newEventResponse(v.Event),
	}
}

func newEventResponse(e registration.Event) *EventResponse {
	switch ev := e.(type) {
	case registration.ShowMessage:
		return &EventResponse{Type: EventShowMessage, Message: ev.Text}
	case registration.ShowPrivacyPolicyDialog:
		return &EventResponse{Type: EventShowPrivacyPolicyDialog}
	case registration.HideKeyboard:
		return &EventResponse{Type: EventHideKeyboard}
	case registration.SendVerificationCode:
		return &EventResponse{Type: EventSendVerificationCode}
	case registration.NavigateBackWithResult:
		user := ev.User
		return &EventResponse{Type: EventNavigateBackWithResult, ID: ev.ID, User: &user}
	default:
		return nil
	}
}

// createRegistrationHandler opens a new registration session
func (s *Server) createRegistrationHandler(c *gin.Context) {
	sess, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	metrics.SetLiveSessions(s.sessions.Count())

	view, err := sess.View(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeView(c, http.StatusCreated, view)
}

// deleteRegistrationHandler closes a session and releases its clock
func (s *Server) deleteRegistrationHandler(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Close(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	metrics.SetLiveSessions(s.sessions.Count())

	c.JSON(http.StatusOK, gin.H{
		"message":    "Registration session closed",
		"session_id": id,
	})
}

// updateFieldsHandler applies a partial form edit
func (s *Server) updateFieldsHandler(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	var fields session.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	view, err := sess.UpdateFields(c.Request.Context(), fields)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeView(c, http.StatusOK, view)
}
