package consultation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medagenda/medagenda/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleSecretary))
	read.GET("/consultations", h.ListConsultations)
	read.GET("/consultations/:id", h.GetConsultation)

	clinical := api.Group("", auth.RequireRole(auth.RoleProfessional))
	clinical.POST("/consultations", h.CreateConsultation)
	clinical.PUT("/consultations/:id", h.UpdateConsultation)
	clinical.DELETE("/consultations/:id", h.DeleteConsultation)
	clinical.POST("/consultations/:id/conclude", h.ConcludeConsultation)
	clinical.GET("/patients/:id/consultation-history", h.PatientHistory)
}

type createConsultationRequest struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	Notes           *string   `json:"notes"`
	Diagnosis       *string   `json:"diagnosis"`
	TreatmentPlan   *string   `json:"treatment_plan"`
	AttentionPoints *string   `json:"attention_points"`
	Status          *Status   `json:"status"`
}

type updateConsultationRequest struct {
	Notes           *string `json:"notes"`
	Diagnosis       *string `json:"diagnosis"`
	TreatmentPlan   *string `json:"treatment_plan"`
	AttentionPoints *string `json:"attention_points"`
	Status          *Status `json:"status"`
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	var req createConsultationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AppointmentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_id is required")
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	view, err := h.svc.Create(c.Request().Context(), CreateInput{
		AppointmentID:   req.AppointmentID,
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		TreatmentPlan:   req.TreatmentPlan,
		AttentionPoints: req.AttentionPoints,
		Status:          req.Status,
	}, principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	principal, _ := auth.PrincipalFromContext(c.Request().Context())

	if patientParam := c.QueryParam("patient_id"); patientParam != "" {
		patientID, err := uuid.Parse(patientParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		views, err := h.svc.ListByPatient(c.Request().Context(), patientID, principal)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, views)
	}

	views, err := h.svc.ListAll(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	view, err := h.svc.GetByID(c.Request().Context(), id, principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateConsultationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	view, err := h.svc.Update(c.Request().Context(), id, UpdateInput{
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		TreatmentPlan:   req.TreatmentPlan,
		AttentionPoints: req.AttentionPoints,
		Status:          req.Status,
	}, principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.Remove(c.Request().Context(), id, principal); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ConcludeConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	view, err := h.svc.Conclude(c.Request().Context(), id, principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	history, err := h.svc.PatientHistory(c.Request().Context(), patientID, principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}
