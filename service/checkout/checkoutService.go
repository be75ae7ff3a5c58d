package checkoutsvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	checkoutrepo "libraryapi/repository/checkout"

	"libraryapi/model"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookUnavailable  ErrCode = "BOOK_UNAVAILABLE"
	ErrCheckoutNotFound ErrCode = "CHECKOUT_NOT_FOUND"
	ErrAlreadyReturned  ErrCode = "ALREADY_RETURNED"
	ErrUserNotFound     ErrCode = "USER_NOT_FOUND"
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

// Filter re-exported for controllers.
type Filter = checkoutrepo.Filter

// Books is the slice of the book registry the lifecycle needs. Claim is
// a single conditional write: it succeeds for exactly one caller when
// several race on the same AVAILABLE book.
type Books interface {
	ByID(ctx context.Context, id int64) (*model.Book, error)
	Claim(ctx context.Context, id int64) (bool, error)
	Release(ctx context.Context, id int64) error
}

// Ledger is the checkout record store.
type Ledger interface {
	Insert(ctx context.Context, c *model.Checkout) error
	ByID(ctx context.Context, id int64) (*model.Checkout, error)
	StampReturned(ctx context.Context, id int64, at time.Time) (bool, error)
	LatestByBook(ctx context.Context, bookID int64) (*model.Checkout, error)
	List(ctx context.Context, f Filter) ([]model.Checkout, error)
}

// Users resolves borrower references before any state is touched.
type Users interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type CreateReq struct {
	UserID     int64
	BookID     int64
	BorrowedAt time.Time
}

type Service interface {
	// Create borrows a book: claims it and opens a checkout.
	Create(ctx context.Context, req CreateReq) (*model.Checkout, error)

	// Return closes the checkout and frees the book.
	Return(ctx context.Context, checkoutID int64) (*model.Checkout, error)

	// ByBook returns the latest checkout for a book, book populated.
	ByBook(ctx context.Context, bookID int64) (*model.Checkout, error)

	// List returns checkouts matching the filter.
	List(ctx context.Context, f Filter) ([]model.Checkout, error)
}

// ----- Service implementation -----

type service struct {
	books  Books
	ledger Ledger
	users  Users
	now    func() time.Time
}

func New(books Books, ledger Ledger, users Users) Service {
	return &service{books: books, ledger: ledger, users: users, now: time.Now}
}

// Create borrows: resolve user and book, claim the book, open a checkout.
// The claim is the borrow gate; everything after it either commits the
// checkout or puts the book back.
func (s *service) Create(ctx context.Context, req CreateReq) (*model.Checkout, error) {
	ok, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, makeErr(ErrUserNotFound)
	}

	book, err := s.books.ByID(ctx, req.BookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrBookUnavailable)
	}
	if err != nil {
		return nil, err
	}

	claimed, err := s.books.Claim(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, makeErr(ErrBookUnavailable)
	}

	// The checkout carries the resolved book id, not the raw request value.
	c := &model.Checkout{
		UserID:     req.UserID,
		BookID:     book.ID,
		BorrowedAt: req.BorrowedAt,
	}
	if err := s.ledger.Insert(ctx, c); err != nil {
		// Claimed but no checkout recorded: release so the book is not
		// stuck UNAVAILABLE with nothing open on it.
		if rerr := s.books.Release(ctx, book.ID); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return c, nil
}

// Return frees the book and stamps returned_at exactly once.
func (s *service) Return(ctx context.Context, checkoutID int64) (*model.Checkout, error) {
	c, err := s.ledger.ByID(ctx, checkoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrCheckoutNotFound)
	}
	if err != nil {
		return nil, err
	}
	if c.ReturnedAt != nil {
		return nil, makeErr(ErrAlreadyReturned)
	}

	if err := s.books.Release(ctx, c.BookID); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	stamped, err := s.ledger.StampReturned(ctx, c.ID, at)
	if err != nil {
		// Released but the checkout is still open: claim the book back so
		// it is not AVAILABLE while an open checkout exists.
		if _, cerr := s.books.Claim(ctx, c.BookID); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}
	if !stamped {
		// A concurrent return won the stamp; the book is free either way.
		return nil, makeErr(ErrAlreadyReturned)
	}
	c.ReturnedAt = &at
	return c, nil
}

func (s *service) ByBook(ctx context.Context, bookID int64) (*model.Checkout, error) {
	c, err := s.ledger.LatestByBook(ctx, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrCheckoutNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]model.Checkout, error) {
	return s.ledger.List(ctx, f)
}
