package booksvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"libraryapi/model"
	bookrepo "libraryapi/repository/book"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound   ErrCode = "BOOK_NOT_FOUND"
	ErrCheckedOut ErrCode = "BOOK_CHECKED_OUT"
	ErrDuplicate  ErrCode = "DUPLICATE_FIELD"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// mapDuplicateErr turns a Postgres unique violation (title, isbn13,
// img_uri) into the duplicate code; anything else passes through.
func mapDuplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return makeErr(ErrDuplicate)
	}
	return err
}

type Filter = bookrepo.Filter
type Fields = bookrepo.Fields

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, f Filter) ([]model.Book, error)
	Update(ctx context.Context, id int64, f Fields) (*model.Book, error)
	DeleteAvailable(ctx context.Context, id int64) (bool, error)
}

type Service interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, f Filter) ([]model.Book, error)
	Update(ctx context.Context, id int64, f Fields) (*model.Book, error)

	// Delete removes a book; refused while a checkout is open on it.
	Delete(ctx context.Context, id int64) error
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

// Create registers a new book. Status always starts AVAILABLE; the
// checkout lifecycle is the only writer of that field afterwards.
func (s *service) Create(ctx context.Context, b *model.Book) error {
	if err := s.r.Create(ctx, b); err != nil {
		return mapDuplicateErr(err)
	}
	return nil
}

func (s *service) ByID(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]model.Book, error) {
	return s.r.List(ctx, f)
}

func (s *service) Update(ctx context.Context, id int64, f Fields) (*model.Book, error) {
	b, err := s.r.Update(ctx, id, f)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound)
	}
	if err != nil {
		return nil, mapDuplicateErr(err)
	}
	return b, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	b, err := s.r.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound)
	}
	if err != nil {
		return err
	}
	if b.Status != model.BookAvailable {
		return makeErr(ErrCheckedOut)
	}
	deleted, err := s.r.DeleteAvailable(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		// Raced with a borrow (or a concurrent delete).
		return makeErr(ErrCheckedOut)
	}
	return nil
}
