package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/alert"
	"github.com/mesikahq/patient-care-portal/internal/audit"
	"github.com/mesikahq/patient-care-portal/internal/auth"
	"github.com/mesikahq/patient-care-portal/internal/medical"
	"github.com/mesikahq/patient-care-portal/internal/patient"
)

// Error kinds reported in failure envelopes.
const (
	KindPatientNotFound = "patient_not_found"
	KindMedicalNotFound = "medical_not_found"
	KindInvalidSection  = "invalid_section"
	KindValidation      = "validation_error"
	KindUnauthorized    = "unauthorized"
	KindConflict        = "conflict"
	KindInternal        = "internal_error"
)

type Handler struct {
	authService    auth.Service
	patientService patient.Service
	medicalService medical.Service
	auditService   audit.Service
	hub            *alert.Hub
	logger         *zap.Logger
}

func NewHandler(
	authService auth.Service,
	patientService patient.Service,
	medicalService medical.Service,
	auditService audit.Service,
	hub *alert.Hub,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		authService:    authService,
		patientService: patientService,
		medicalService: medicalService,
		auditService:   auditService,
		hub:            hub,
		logger:         logger,
	}
}

func success(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"kind":    kind,
		"message": message,
	})
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, KindValidation, err.Error())
}

// respondError translates service errors into the response envelope. Storage
// failures are logged and reported without detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, patient.ErrPatientNotFound):
		fail(c, http.StatusNotFound, KindPatientNotFound, "Patient not found")
	case errors.Is(err, medical.ErrMedicalNotFound):
		fail(c, http.StatusNotFound, KindMedicalNotFound, "Medical information not found")
	case errors.Is(err, medical.ErrInvalidSection):
		fail(c, http.StatusBadRequest, KindInvalidSection, "Invalid section")
	case errors.Is(err, patient.ErrInvalidPatientData),
		errors.Is(err, medical.ErrInvalidData),
		errors.Is(err, auth.ErrInvalidUser):
		fail(c, http.StatusBadRequest, KindValidation, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, KindUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrDuplicateUser):
		fail(c, http.StatusConflict, KindConflict, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, KindInternal, "Internal server error")
	}
}

// Authentication Handlers

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "Login successful", gin.H{
		"token":      resp.Token,
		"expires_at": resp.ExpiresAt,
		"user":       resp.User,
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" || userID == audit.Anonymous {
		success(c, http.StatusOK, "", gin.H{
			"user": gin.H{"id": audit.Anonymous, "roles": []string{}},
		})
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			fail(c, http.StatusUnauthorized, KindUnauthorized, "User no longer exists")
			return
		}
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "", gin.H{"user": user})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"alert_clients": h.hub.ClientCount(),
	})
}
