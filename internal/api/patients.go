package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/patient-care-portal/internal/patient"
)

func (h *Handler) RegisterPatient(c *gin.Context) {
	var fields patient.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}

	record, err := h.patientService.Register(c.Request.Context(), fields)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusCreated, "Patient registered successfully", gin.H{
		"regNumber": record.RegNumber,
		"patient":   record,
	})
}

func (h *Handler) GetPatient(c *gin.Context) {
	record, err := h.patientService.Get(c.Request.Context(), c.Param("regNumber"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "", gin.H{"patient": record})
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var fields patient.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}

	record, err := h.patientService.Update(c.Request.Context(), c.Param("regNumber"), fields)
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "Patient updated successfully", gin.H{"patient": record})
}

func (h *Handler) GetPatientHistory(c *gin.Context) {
	events, err := h.patientService.GetHistory(c.Request.Context(), c.Param("regNumber"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	success(c, http.StatusOK, "", gin.H{
		"count":  len(events),
		"events": events,
	})
}
