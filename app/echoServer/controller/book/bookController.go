package book

import (
	"log/slog"
	"net/http"
	"strconv"

	"libraryapi/model"
	bs "libraryapi/service/book"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// GET /books
func (h *Controller) List(c echo.Context) error {
	var req QueryBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid query"})
	}

	rows, err := h.Svc.List(c.Request().Context(), bs.Filter{
		Author: req.Author,
		Title:  req.Title,
		Pages:  req.Pages,
		Limit:  req.Limit,
	})
	if err != nil {
		h.Log.Error("book list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /books/:id
func (h *Controller) ByID(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid ID"})
	}

	b, err := h.Svc.ByID(c.Request().Context(), id)
	if err != nil {
		if bs.Code(err) == bs.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		}
		h.Log.Error("book detail", "err", err, "book_id", id)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, b)
}

// POST /books
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	b := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		Pages:         req.Pages,
		YearPublished: req.YearPublished,
		ISBN13:        req.ISBN13,
		ImgURI:        req.ImgURI,
	}
	if err := h.Svc.Create(c.Request().Context(), b); err != nil {
		if bs.Code(err) == bs.ErrDuplicate {
			return c.JSON(http.StatusConflict, echo.Map{"message": "duplicate title, isbn13 or img_uri"})
		}
		h.Log.Error("book create", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, b)
}

// PATCH /books/:id
func (h *Controller) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid ID"})
	}
	var req UpdateBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	b, err := h.Svc.Update(c.Request().Context(), id, bs.Fields{
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		Pages:         req.Pages,
		YearPublished: req.YearPublished,
		ISBN13:        req.ISBN13,
		ImgURI:        req.ImgURI,
	})
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case bs.ErrDuplicate:
			return c.JSON(http.StatusConflict, echo.Map{"message": "duplicate title, isbn13 or img_uri"})
		default:
			h.Log.Error("book update", "err", err, "book_id", id)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// DELETE /books/:id
func (h *Controller) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid ID"})
	}

	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case bs.ErrCheckedOut:
			return c.JSON(http.StatusConflict, echo.Map{"message": "book has an open checkout"})
		default:
			h.Log.Error("book delete", "err", err, "book_id", id)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
