package checkout

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	cs "libraryapi/service/checkout"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc cs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /checkouts
func (h *Controller) Create(c echo.Context) error {
	var req CreateCheckoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	out, err := h.Svc.Create(c.Request().Context(), cs.CreateReq{
		UserID:     req.UserID,
		BookID:     req.BookID,
		BorrowedAt: req.BorrowedAt,
	})
	if err != nil {
		h.Log.Error("checkout create", "err", err)
		switch cs.Code(err) {
		case cs.ErrBookUnavailable:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "book is not available"})
		case cs.ErrUserNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, out)
}

// PATCH /checkouts/:id
func (h *Controller) Return(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	out, err := h.Svc.Return(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("checkout return", "err", err, "checkout_id", id)
		switch cs.Code(err) {
		case cs.ErrCheckoutNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "checkout not found"})
		case cs.ErrAlreadyReturned:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "book has already been returned"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, out)
}

// GET /checkouts/:bookId
func (h *Controller) ByBook(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book ID"})
	}

	out, err := h.Svc.ByBook(c.Request().Context(), bookID)
	if err != nil {
		h.Log.Error("checkout by book", "err", err, "book_id", bookID)
		switch cs.Code(err) {
		case cs.ErrCheckoutNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "checkout not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, out)
}

// GET /checkouts
func (h *Controller) List(c echo.Context) error {
	var req QueryCheckoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid query"})
	}

	f := cs.Filter{UserID: req.UserID, BookID: req.BookID}
	if req.BorrowedAt != "" {
		t, err := time.Parse(time.RFC3339, req.BorrowedAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid borrowed_at"})
		}
		f.BorrowedAt = &t
	}
	if req.ReturnedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReturnedAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid returned_at"})
		}
		f.ReturnedAt = &t
	}

	rows, err := h.Svc.List(c.Request().Context(), f)
	if err != nil {
		h.Log.Error("checkout list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
