package checkoutrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"libraryapi/model"
)

// Filter narrows List results; nil fields are ignored.
type Filter struct {
	UserID     *int64
	BookID     *int64
	BorrowedAt *time.Time
	ReturnedAt *time.Time
}

type Repo interface {
	Insert(ctx context.Context, c *model.Checkout) error
	ByID(ctx context.Context, id int64) (*model.Checkout, error)

	// StampReturned closes the checkout; the conditional write makes the
	// close transition fire at most once. Reports whether this call did
	// the closing.
	StampReturned(ctx context.Context, id int64, at time.Time) (bool, error)

	// LatestByBook returns the most recently borrowed checkout for the
	// book, open or closed, with the book populated.
	LatestByBook(ctx context.Context, bookID int64) (*model.Checkout, error)

	List(ctx context.Context, f Filter) ([]model.Checkout, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Insert(ctx context.Context, c *model.Checkout) error {
	const q = `
		INSERT INTO checkouts (user_id, book_id, borrowed_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	return r.db.QueryRowContext(ctx, q, c.UserID, c.BookID, c.BorrowedAt).Scan(&c.ID)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Checkout, error) {
	const q = `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM checkouts
		WHERE id = $1`
	var c model.Checkout
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.UserID, &c.BookID, &c.BorrowedAt, &c.ReturnedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) StampReturned(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
		UPDATE checkouts
		SET returned_at = $2
		WHERE id = $1
		AND returned_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) LatestByBook(ctx context.Context, bookID int64) (*model.Checkout, error) {
	const q = `
		SELECT c.id, c.user_id, c.book_id, c.borrowed_at, c.returned_at,
			b.id, b.title, b.author, b.genre, b.pages, b.year_published,
			b.isbn13, b.img_uri, b.status
		FROM checkouts c
		JOIN books b ON b.id = c.book_id
		WHERE c.book_id = $1
		ORDER BY c.borrowed_at DESC, c.id DESC
		LIMIT 1`
	var (
		c model.Checkout
		b model.Book
	)
	err := r.db.QueryRowContext(ctx, q, bookID).Scan(
		&c.ID, &c.UserID, &c.BookID, &c.BorrowedAt, &c.ReturnedAt,
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Pages, &b.YearPublished,
		&b.ISBN13, &b.ImgURI, &b.Status)
	if err != nil {
		return nil, err
	}
	c.Book = &b
	return &c, nil
}

func (r *repo) List(ctx context.Context, f Filter) ([]model.Checkout, error) {
	q := `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM checkouts`
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.BookID != nil {
		args = append(args, *f.BookID)
		where = append(where, fmt.Sprintf("book_id = $%d", len(args)))
	}
	if f.BorrowedAt != nil {
		args = append(args, *f.BorrowedAt)
		where = append(where, fmt.Sprintf("borrowed_at = $%d", len(args)))
	}
	if f.ReturnedAt != nil {
		args = append(args, *f.ReturnedAt)
		where = append(where, fmt.Sprintf("returned_at = $%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY borrowed_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Checkout
	for rows.Next() {
		var c model.Checkout
		if err := rows.Scan(&c.ID, &c.UserID, &c.BookID, &c.BorrowedAt, &c.ReturnedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
