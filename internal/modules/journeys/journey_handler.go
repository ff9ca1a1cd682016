package journeys

import (
	"errors"
	"net/http"

	"shiplink/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for vehicles, journeys and search.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new journey handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) CreateVehicle(c echo.Context) error {
	carrierID := c.Get("userID").(string)

	var req models.CreateVehicleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	vehicle, err := h.svc.CreateVehicle(c.Request().Context(), carrierID, req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "License plate already registered"})
		}
		c.Logger().Error("Handler.CreateVehicle: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create vehicle"})
	}
	return c.JSON(http.StatusCreated, vehicle)
}

func (h *Handler) ListVehicles(c echo.Context) error {
	carrierID := c.Get("userID").(string)

	vehicles, err := h.svc.ListVehicles(c.Request().Context(), carrierID)
	if err != nil {
		c.Logger().Error("Handler.ListVehicles: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list vehicles"})
	}
	return c.JSON(http.StatusOK, vehicles)
}

func (h *Handler) UpdateVehicle(c echo.Context) error {
	carrierID := c.Get("userID").(string)
	vehicleID := c.Param("id")

	var req models.CreateVehicleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	vehicle, err := h.svc.UpdateVehicle(c.Request().Context(), carrierID, vehicleID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Vehicle not found"})
		case errors.Is(err, models.ErrConflict):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Vehicle is referenced by a journey and cannot be changed"})
		}
		c.Logger().Error("Handler.UpdateVehicle: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update vehicle"})
	}
	return c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) CreateJourney(c echo.Context) error {
	carrierID := c.Get("userID").(string)

	var req models.CreateJourneyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	journey, err := h.svc.CreateJourney(c.Request().Context(), carrierID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Vehicle not found"})
		case errors.Is(err, models.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Vehicle belongs to another carrier"})
		case errors.Is(err, models.ErrInvalidSchedule):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Journey dates are out of order"})
		case errors.Is(err, models.ErrConflict):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Vehicle is not active"})
		}
		c.Logger().Error("Handler.CreateJourney: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create journey"})
	}
	return c.JSON(http.StatusCreated, journey)
}

func (h *Handler) Search(c echo.Context) error {
	fromCity := c.QueryParam("from")
	toCity := c.QueryParam("to")
	if fromCity == "" || toCity == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Both from and to are required"})
	}

	journeys, err := h.svc.Search(c.Request().Context(), fromCity, toCity, c.QueryParam("date"))
	if err != nil {
		if errors.Is(err, models.ErrInvalidSchedule) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid date, expected YYYY-MM-DD"})
		}
		c.Logger().Error("Handler.Search: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to search journeys"})
	}
	return c.JSON(http.StatusOK, journeys)
}

func (h *Handler) ListMine(c echo.Context) error {
	carrierID := c.Get("userID").(string)

	journeys, err := h.svc.ListMine(c.Request().Context(), carrierID)
	if err != nil {
		c.Logger().Error("Handler.ListMine: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list journeys"})
	}
	return c.JSON(http.StatusOK, journeys)
}

func (h *Handler) Retire(c echo.Context) error {
	carrierID := c.Get("userID").(string)
	journeyID := c.Param("id")

	if err := h.svc.Retire(c.Request().Context(), journeyID, carrierID); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Journey not found"})
		case errors.Is(err, models.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Journey belongs to another carrier"})
		case errors.Is(err, models.ErrConflict):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Journey has committed cargo and cannot be retired"})
		}
		c.Logger().Error("Handler.Retire: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retire journey"})
	}
	return c.NoContent(http.StatusNoContent)
}
