package bookrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"libraryapi/model"
)

// Filter narrows List results. Pages matches books with at most that
// many pages. Zero-value fields are ignored.
type Filter struct {
	Author string
	Title  string
	Pages  *int64
	Limit  *int64
}

// Fields carries the partial-update payload; nil fields are left
// untouched. Status is deliberately absent: availability is owned by
// the checkout lifecycle.
type Fields struct {
	Title         *string
	Author        *string
	Genre         *string
	Pages         *int64
	YearPublished *int64
	ISBN13        *int64
	ImgURI        *string
}

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, f Filter) ([]model.Book, error)
	Update(ctx context.Context, id int64, f Fields) (*model.Book, error)

	// Claim flips AVAILABLE -> UNAVAILABLE in one conditional write and
	// reports whether this caller won the book.
	Claim(ctx context.Context, id int64) (bool, error)
	// Release puts the book back to AVAILABLE.
	Release(ctx context.Context, id int64) error

	// DeleteAvailable deletes the book only while no checkout is open on
	// it; reports whether a row was removed.
	DeleteAvailable(ctx context.Context, id int64) (bool, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const bookCols = `id, title, author, genre, pages, year_published, isbn13, img_uri, status`

func scanBook(row *sql.Row) (*model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Pages,
		&b.YearPublished, &b.ISBN13, &b.ImgURI, &b.Status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
		INSERT INTO books (title, author, genre, pages, year_published, isbn13, img_uri, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'AVAILABLE')
		RETURNING id, status`
	return r.db.QueryRowContext(ctx, q,
		b.Title, b.Author, b.Genre, b.Pages, b.YearPublished, b.ISBN13, b.ImgURI,
	).Scan(&b.ID, &b.Status)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	q := `SELECT ` + bookCols + ` FROM books WHERE id = $1`
	return scanBook(r.db.QueryRowContext(ctx, q, id))
}

func (r *repo) List(ctx context.Context, f Filter) ([]model.Book, error) {
	q := `SELECT ` + bookCols + ` FROM books`
	var (
		where []string
		args  []any
	)
	if f.Author != "" {
		args = append(args, f.Author)
		where = append(where, fmt.Sprintf("author = $%d", len(args)))
	}
	if f.Title != "" {
		args = append(args, f.Title)
		where = append(where, fmt.Sprintf("title = $%d", len(args)))
	}
	if f.Pages != nil {
		args = append(args, *f.Pages)
		where = append(where, fmt.Sprintf("pages <= $%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if f.Limit != nil && *f.Limit > 0 {
		args = append(args, *f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Pages,
			&b.YearPublished, &b.ISBN13, &b.ImgURI, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repo) Update(ctx context.Context, id int64, f Fields) (*model.Book, error) {
	var (
		set  []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Title != nil {
		add("title", *f.Title)
	}
	if f.Author != nil {
		add("author", *f.Author)
	}
	if f.Genre != nil {
		add("genre", *f.Genre)
	}
	if f.Pages != nil {
		add("pages", *f.Pages)
	}
	if f.YearPublished != nil {
		add("year_published", *f.YearPublished)
	}
	if f.ISBN13 != nil {
		add("isbn13", *f.ISBN13)
	}
	if f.ImgURI != nil {
		add("img_uri", *f.ImgURI)
	}
	if len(set) == 0 {
		return r.ByID(ctx, id)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE books SET %s WHERE id = $%d RETURNING `+bookCols,
		strings.Join(set, ", "), len(args))
	return scanBook(r.db.QueryRowContext(ctx, q, args...))
}

func (r *repo) Claim(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE books
		SET status = 'UNAVAILABLE'
		WHERE id = $1
		AND status = 'AVAILABLE'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) Release(ctx context.Context, id int64) error {
	const q = `
		UPDATE books
		SET status = 'AVAILABLE'
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *repo) DeleteAvailable(ctx context.Context, id int64) (bool, error) {
	const q = `
		DELETE FROM books
		WHERE id = $1
		AND status = 'AVAILABLE'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}
