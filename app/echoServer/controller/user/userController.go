package user

import (
	"log/slog"
	"net/http"
	"strconv"

	us "libraryapi/service/user"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc us.Service
	Log *slog.Logger
}

// GET /users (admin only)
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		h.Log.Error("user list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /users/:id (admin only)
func (h *Controller) ByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid ID"})
	}

	u, err := h.Svc.ByID(c.Request().Context(), id)
	if err != nil {
		if us.Code(err) == us.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		h.Log.Error("user detail", "err", err, "user_id", id)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, u)
}
