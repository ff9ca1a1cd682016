package users

import (
	"errors"
	"net/http"
	"strconv"

	"shiplink/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for accounts, profiles and reviews.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new user handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Email already registered"})
		}
		c.Logger().Error("Handler.Register: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to register"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid email or password"})
		}
		c.Logger().Error("Handler.Login: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to log in"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GoogleLogin(c echo.Context) error {
	state := c.QueryParam("state")
	return c.JSON(http.StatusOK, map[string]string{"url": h.svc.GoogleAuthURL(state)})
}

func (h *Handler) GoogleCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Missing authorization code"})
	}

	resp, err := h.svc.LoginWithGoogle(c.Request().Context(), code)
	if err != nil {
		c.Logger().Error("Handler.GoogleCallback: ", err)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Google sign-in failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetProfile(c echo.Context) error {
	user, err := h.svc.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "User not found"})
		}
		c.Logger().Error("Handler.GetProfile: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve profile"})
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) PostReview(c echo.Context) error {
	reviewerID := c.Get("userID").(string)
	reviewedID := c.Param("id")

	var req models.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	summary, err := h.svc.RecordReview(c.Request().Context(), reviewedID, reviewerID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidScore):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Score must be between 1 and 5"})
		case errors.Is(err, models.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Cannot review yourself"})
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "User not found"})
		}
		c.Logger().Error("Handler.PostReview: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to record review"})
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListReviews(c echo.Context) error {
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

	reviews, total, err := h.svc.ListReviews(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListReviews: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list reviews"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reviews": reviews, "total": total})
}
