package scheduling

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleSecretary))
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/available-slots", h.AvailableSlots)
	g.GET("/appointments/:id", h.GetAppointment)
	g.POST("/appointments", h.CreateAppointment)
	g.PUT("/appointments/:id", h.UpdateAppointment)
	g.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
	g.DELETE("/appointments/:id", h.DeleteAppointment)
}

type createAppointmentRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Observations *string   `json:"observations"`
}

type updateAppointmentRequest struct {
	PatientID    *uuid.UUID `json:"patient_id"`
	Date         *string    `json:"date"`
	Time         *string    `json:"time"`
	Observations *string    `json:"observations"`
	Status       *Status    `json:"status"`
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

func parseDate(value string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperr.Validationf("date must be in YYYY-MM-DD format, got %q", value)
	}
	return d, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	a := &Appointment{
		PatientID:    req.PatientID,
		Date:         date,
		Time:         req.Time,
		Observations: req.Observations,
		CreatedByID:  principal.ID,
	}
	if err := h.svc.Create(c.Request().Context(), a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	ctx := c.Request().Context()

	if dateParam := c.QueryParam("date"); dateParam != "" {
		date, err := parseDate(dateParam)
		if err != nil {
			return err
		}
		appointments, err := h.svc.ListByDate(ctx, date)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, appointments)
	}

	if patientParam := c.QueryParam("patient_id"); patientParam != "" {
		patientID, err := uuid.Parse(patientParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		appointments, err := h.svc.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, appointments)
	}

	appointments, err := h.svc.ListAll(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointments)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := UpdateInput{
		PatientID:    req.PatientID,
		Time:         req.Time,
		Observations: req.Observations,
		Status:       req.Status,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return err
		}
		in.Date = &date
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.Update(c.Request().Context(), id, in, principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.Remove(c.Request().Context(), id, principal.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	dateParam := c.QueryParam("date")
	if dateParam == "" {
		return apperr.Validationf("date query parameter is required")
	}
	date, err := parseDate(dateParam)
	if err != nil {
		return err
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}
