package bookings

import (
	"errors"
	"net/http"
	"strconv"

	"shiplink/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for package bookings and their lifecycle.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new booking handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// bookingError maps the domain error kinds to their HTTP responses; every
// kind is recoverable and user-facing.
func bookingError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Package or journey not found"})
	case errors.Is(err, models.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "You are not allowed to perform this action"})
	case errors.Is(err, models.ErrInvalidWeight):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Package weight must be at least 15kg and fit the vehicle"})
	case errors.Is(err, models.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Journey has no remaining capacity for this package"})
	case errors.Is(err, models.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Package is not in a state that allows this action"})
	case errors.Is(err, models.ErrConflict):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Journey is no longer accepting bookings"})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Operation failed"})
}

func (h *Handler) CreatePackage(c echo.Context) error {
	senderID := c.Get("userID").(string)

	var req models.CreatePackageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Create(c.Request().Context(), senderID, req)
	if err != nil {
		return bookingError(c, "Handler.CreatePackage", err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetPackage(c echo.Context) error {
	actorID := c.Get("userID").(string)

	resp, err := h.svc.Get(c.Request().Context(), c.Param("id"), actorID)
	if err != nil {
		return bookingError(c, "Handler.GetPackage", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListMyPackages(c echo.Context) error {
	senderID := c.Get("userID").(string)

	page := 1
	limit := 20
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	packages, total, err := h.svc.ListMine(c.Request().Context(), senderID, page, limit)
	if err != nil {
		return bookingError(c, "Handler.ListMyPackages", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"packages": packages, "total": total})
}

func (h *Handler) Approve(c echo.Context) error {
	actorID := c.Get("userID").(string)

	pkg, err := h.svc.Approve(c.Request().Context(), c.Param("id"), actorID)
	if err != nil {
		return bookingError(c, "Handler.Approve", err)
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) Cancel(c echo.Context) error {
	actorID := c.Get("userID").(string)

	pkg, err := h.svc.Cancel(c.Request().Context(), c.Param("id"), actorID)
	if err != nil {
		return bookingError(c, "Handler.Cancel", err)
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) Deliver(c echo.Context) error {
	actorID := c.Get("userID").(string)

	var req models.DeliverRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	pkg, err := h.svc.Deliver(c.Request().Context(), c.Param("id"), actorID, req.DeliveryCode)
	if err != nil {
		return bookingError(c, "Handler.Deliver", err)
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) Depart(c echo.Context) error {
	actorID := c.Get("userID").(string)

	var req models.DepartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	resp, err := h.svc.Depart(c.Request().Context(), c.Param("id"), actorID, req.Force)
	if err != nil {
		return bookingError(c, "Handler.Depart", err)
	}
	return c.JSON(http.StatusOK, resp)
}
