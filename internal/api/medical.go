package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/patient-care-portal/internal/medical"
	"github.com/mesikahq/patient-care-portal/internal/types"
)

func (h *Handler) GetMedical(c *gin.Context) {
	record, err := h.medicalService.GetMedical(c.Request.Context(), c.Param("regNumber"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if record == nil {
		h.respondError(c, medical.ErrMedicalNotFound)
		return
	}

	success(c, http.StatusOK, "", gin.H{"data": record})
}

func (h *Handler) SaveMedical(c *gin.Context) {
	var update medical.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}

	record, created, err := h.medicalService.SaveMedical(c.Request.Context(), c.Param("regNumber"), update)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if created {
		success(c, http.StatusCreated, "Medical information saved successfully", gin.H{"data": record})
		return
	}
	success(c, http.StatusOK, "Medical information updated successfully", gin.H{"data": record})
}

func (h *Handler) UpdateMedicalSection(c *gin.Context) {
	section := c.Param("section")
	if !medical.ValidSection(section) {
		h.respondError(c, medical.ErrInvalidSection)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' || !json.Valid(body) {
		badRequest(c, errors.New("section body must be a JSON object"))
		return
	}

	record, err := h.medicalService.UpdateSection(c.Request.Context(), c.Param("regNumber"), section, body)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, fmt.Sprintf("%s section updated successfully", section), gin.H{"data": record})
}

func (h *Handler) DeleteMedical(c *gin.Context) {
	if err := h.medicalService.DeleteMedical(c.Request.Context(), c.Param("regNumber")); err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "Medical information deleted successfully", nil)
}

func (h *Handler) GetComplete(c *gin.Context) {
	complete, err := h.medicalService.GetComplete(c.Request.Context(), c.Param("regNumber"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "", gin.H{
		"patient":     complete.Patient,
		"medicalInfo": complete.MedicalInfo,
	})
}

func (h *Handler) GetMedicalSummary(c *gin.Context) {
	filter, err := parseSummaryFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	summaries, err := h.medicalService.Summary(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "", gin.H{
		"count": len(summaries),
		"data":  summaries,
	})
}

// parseSummaryFilter reads department, dateFrom and dateTo. A date-only
// dateTo covers the whole day.
func parseSummaryFilter(c *gin.Context) (medical.SummaryFilter, error) {
	filter := medical.SummaryFilter{Department: strings.TrimSpace(c.Query("department"))}

	if v := c.Query("dateFrom"); v != "" {
		d, err := types.ParseDate(v)
		if err != nil {
			return filter, fmt.Errorf("dateFrom: %w", err)
		}
		filter.DateFrom = d.Time
	}
	if v := c.Query("dateTo"); v != "" {
		d, err := types.ParseDate(v)
		if err != nil {
			return filter, fmt.Errorf("dateTo: %w", err)
		}
		filter.DateTo = d.Time
		if len(v) == len("2006-01-02") {
			filter.DateTo = filter.DateTo.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() && filter.DateTo.Before(filter.DateFrom) {
		return filter, errors.New("dateTo is before dateFrom")
	}
	return filter, nil
}
