package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/emergency"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
)

// EmergencyNotificationRequest asks for a manager alert.
type EmergencyNotificationRequest struct {
	PropertyID       string                   `json:"propertyId"`
	EmergencyDetails *models.EmergencyDetails `json:"emergencyDetails"`
}

// EmergencyNotificationResponse confirms a sent alert.
type EmergencyNotificationResponse struct {
	Message        string    `json:"message"`
	NotificationID uuid.UUID `json:"notificationId"`
}

// DetectEmergencyRequest asks for keyword detection on a guest message.
type DetectEmergencyRequest struct {
	Message        string `json:"message"`
	Language       string `json:"language,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// EmergencyNotification records an alert and emails the property manager.
func (h *Handler) EmergencyNotification(w http.ResponseWriter, r *http.Request) {
	var req EmergencyNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PropertyID == "" || req.EmergencyDetails == nil {
		h.Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid propertyId")
		return
	}
	details := *req.EmergencyDetails
	if details.Severity == "" {
		details.Severity = models.SeverityStandard
	}
	if !emergency.ValidSeverity(details.Severity) {
		h.Error(w, http.StatusBadRequest, "invalid severity")
		return
	}
	if details.DetectedKeywords == nil {
		details.DetectedKeywords = []string{}
	}

	ctx := r.Context()
	property, err := h.ownedProperty(ctx, currentUser(r), propertyID)
	if err != nil {
		h.serverError(w, "emergency.property", err)
		return
	}
	if property == nil {
		h.Error(w, http.StatusNotFound, "Property not found")
		return
	}

	n := &models.EmergencyNotification{
		PropertyID:   property.ID,
		ManagerEmail: property.ManagerEmail,
		ManagerPhone: property.ManagerPhone,
		Details:      details,
		Status:       models.NotificationPending,
	}
	if err := h.db.CreateEmergencyNotification(ctx, n); err != nil {
		h.serverError(w, "emergency.record", err)
		return
	}
	metrics.Emergencies.WithLabelValues(details.Severity).Inc()

	if h.mailer == nil {
		h.failNotification(w, n, "email delivery not configured")
		return
	}
	subject, body := emergency.ComposeAlert(property.Name, details)
	if err := h.mailer.Send(ctx, property.ManagerEmail, subject, body); err != nil {
		h.logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("emergency email failed")
		h.failNotification(w, n, err.Error())
		return
	}

	if err := h.db.UpdateEmergencyNotificationStatus(ctx, n.ID, models.NotificationSent); err != nil {
		h.serverError(w, "emergency.status", err)
		return
	}
	h.logger.Warn().
		Str("notification_id", n.ID.String()).
		Str("property_id", property.ID.String()).
		Str("severity", details.Severity).
		Msg("emergency notification sent")

	h.notifyHost(ctx, property.HostID, push.Notification{
		Title: emergency.AlertTitle(details.Severity),
		Body:  preview(details.Message),
		Data: map[string]string{
			"property_id":     property.ID.String(),
			"notification_id": n.ID.String(),
			"severity":        details.Severity,
		},
	})

	h.JSON(w, http.StatusOK, EmergencyNotificationResponse{
		Message:        "Emergency notification sent successfully",
		NotificationID: n.ID,
	})
}

// failNotification marks a notification failed and answers 500.
func (h *Handler) failNotification(w http.ResponseWriter, n *models.EmergencyNotification, reason string) {
	// The request context may already be done; the status still has to land.
	ctx, cancel := detachedContext()
	defer cancel()
	if err := h.db.UpdateEmergencyNotificationStatus(ctx, n.ID, models.NotificationFailed); err != nil {
		h.logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("notification status not updated")
	}
	h.Error(w, http.StatusInternalServerError, reason)
}

// DetectEmergency runs keyword detection and logs positive matches.
func (h *Handler) DetectEmergency(w http.ResponseWriter, r *http.Request) {
	var req DetectEmergencyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	convID, ok := optionalID(req.ConversationID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid conversationId")
		return
	}

	ctx := r.Context()
	lang := normalizeLanguage(req.Language)
	if convID != nil {
		conv, property, err := h.ownedConversation(ctx, currentUser(r), *convID)
		if err != nil {
			h.serverError(w, "emergency.detect", err)
			return
		}
		if conv == nil {
			h.Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		if lang == "" {
			lang = property.Language
		}
	}

	det := emergency.Detect(req.Message, lang)
	if det.IsEmergency {
		metrics.Emergencies.WithLabelValues(det.Severity).Inc()
		entry := &models.EmergencyLog{
			ConversationID:   convID,
			Message:          req.Message,
			Severity:         det.Severity,
			DetectedKeywords: det.DetectedKeywords,
		}
		if err := h.db.CreateEmergencyLog(ctx, entry); err != nil {
			h.logger.Warn().Err(err).Msg("emergency log failed")
		}
	}

	h.JSON(w, http.StatusOK, det)
}
