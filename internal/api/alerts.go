package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/alert"
	"github.com/mesikahq/patient-care-portal/internal/audit"
)

const maxFrameBytes = 8 << 20

type HelpRequest struct {
	Text string `json:"text" binding:"required"`
}

// TriggerRedLight broadcasts a red-light event on behalf of a camera client.
func (h *Handler) TriggerRedLight(c *gin.Context) {
	delivered := h.hub.Broadcast(alert.EventRedLight, nil)
	h.logAlert(c, alert.EventRedLight, delivered, nil)

	success(c, http.StatusOK, "Alert broadcast", gin.H{"delivered": delivered})
}

// RequestHelp extracts candidate registration numbers from OCR text and
// broadcasts them. Candidates are passed on unverified.
func (h *Handler) RequestHelp(c *gin.Context) {
	var req HelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	candidates := alert.ExtractCandidates(req.Text)
	delivered := h.hub.Broadcast(alert.EventNeedsHelp, gin.H{
		"candidates": candidates,
		"text":       req.Text,
	})
	h.logAlert(c, alert.EventNeedsHelp, delivered, map[string]interface{}{"candidates": candidates})

	success(c, http.StatusOK, "Alert broadcast", gin.H{
		"candidates": candidates,
		"delivered":  delivered,
	})
}

// AnalyzeFrame runs the red-light predicate on an uploaded PNG or JPEG frame,
// sent either as multipart field "frame" or as the raw request body.
func (h *Handler) AnalyzeFrame(c *gin.Context) {
	var src io.Reader
	if file, err := c.FormFile("frame"); err == nil {
		f, err := file.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()
		src = f
	} else {
		src = c.Request.Body
	}

	img, err := alert.DecodeFrame(io.LimitReader(src, maxFrameBytes))
	if errors.Is(err, alert.ErrFrameTooLarge) {
		badRequest(c, err)
		return
	}
	if err != nil {
		badRequest(c, errors.New("frame must be a PNG or JPEG image"))
		return
	}

	if !alert.HasRedLight(img) {
		success(c, http.StatusOK, "", gin.H{"redLight": false, "delivered": 0})
		return
	}

	delivered := h.hub.Broadcast(alert.EventRedLight, nil)
	h.logAlert(c, alert.EventRedLight, delivered, map[string]interface{}{"source": "frame"})

	success(c, http.StatusOK, "Alert broadcast", gin.H{"redLight": true, "delivered": delivered})
}

func (h *Handler) logAlert(c *gin.Context, event string, delivered int, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["delivered"] = delivered

	err := h.auditService.LogEvent(c.Request.Context(), &audit.AuditEvent{
		EventType: audit.EventAlert,
		Action:    event,
		Resource:  "alert",
		Status:    "success",
		Details:   audit.Details(details),
	})
	if err != nil {
		h.logger.Error("failed to record alert audit event", zap.String("event", event), zap.Error(err))
	}
}
