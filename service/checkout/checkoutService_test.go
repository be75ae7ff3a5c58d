package checkoutsvc_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"libraryapi/model"
	checkoutsvc "libraryapi/service/checkout"

	"github.com/stretchr/testify/require"
)

// --- func-field mocks ---

type booksMock struct {
	byIDFn    func(ctx context.Context, id int64) (*model.Book, error)
	claimFn   func(ctx context.Context, id int64) (bool, error)
	releaseFn func(ctx context.Context, id int64) error

	claims   int
	releases int
}

func (m *booksMock) ByID(ctx context.Context, id int64) (*model.Book, error) {
	return m.byIDFn(ctx, id)
}

func (m *booksMock) Claim(ctx context.Context, id int64) (bool, error) {
	m.claims++
	if m.claimFn == nil {
		return true, nil
	}
	return m.claimFn(ctx, id)
}

func (m *booksMock) Release(ctx context.Context, id int64) error {
	m.releases++
	if m.releaseFn == nil {
		return nil
	}
	return m.releaseFn(ctx, id)
}

type ledgerMock struct {
	insertFn func(ctx context.Context, c *model.Checkout) error
	byIDFn   func(ctx context.Context, id int64) (*model.Checkout, error)
	stampFn  func(ctx context.Context, id int64, at time.Time) (bool, error)
	latestFn func(ctx context.Context, bookID int64) (*model.Checkout, error)
	listFn   func(ctx context.Context, f checkoutsvc.Filter) ([]model.Checkout, error)

	inserts int
}

func (m *ledgerMock) Insert(ctx context.Context, c *model.Checkout) error {
	m.inserts++
	if m.insertFn == nil {
		c.ID = 1
		return nil
	}
	return m.insertFn(ctx, c)
}

func (m *ledgerMock) ByID(ctx context.Context, id int64) (*model.Checkout, error) {
	return m.byIDFn(ctx, id)
}

func (m *ledgerMock) StampReturned(ctx context.Context, id int64, at time.Time) (bool, error) {
	if m.stampFn == nil {
		return true, nil
	}
	return m.stampFn(ctx, id, at)
}

func (m *ledgerMock) LatestByBook(ctx context.Context, bookID int64) (*model.Checkout, error) {
	return m.latestFn(ctx, bookID)
}

func (m *ledgerMock) List(ctx context.Context, f checkoutsvc.Filter) ([]model.Checkout, error) {
	return m.listFn(ctx, f)
}

type usersMock struct {
	existsFn func(ctx context.Context, id int64) (bool, error)
}

func (m *usersMock) Exists(ctx context.Context, id int64) (bool, error) {
	if m.existsFn == nil {
		return true, nil
	}
	return m.existsFn(ctx, id)
}

func availableBook(id int64) *model.Book {
	return &model.Book{ID: id, Title: "Dune", Author: "Herbert", Status: model.BookAvailable}
}

// --- create ---

func TestCreate_Success(t *testing.T) {
	ctx := context.Background()
	books := &booksMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return availableBook(id), nil
		},
	}
	ledger := &ledgerMock{}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c, err := svc.Create(ctx, checkoutsvc.CreateReq{UserID: 7, BookID: 3, BorrowedAt: at})
	require.NoError(t, err)
	require.Equal(t, int64(7), c.UserID)
	require.Equal(t, int64(3), c.BookID)
	require.Equal(t, at, c.BorrowedAt)
	require.Nil(t, c.ReturnedAt)
	require.Equal(t, 1, books.claims)
	require.Equal(t, 1, ledger.inserts)
}

func TestCreate_UserMissing(t *testing.T) {
	books := &booksMock{}
	ledger := &ledgerMock{}
	svc := checkoutsvc.New(books, ledger, &usersMock{
		existsFn: func(ctx context.Context, id int64) (bool, error) { return false, nil },
	})

	_, err := svc.Create(context.Background(), checkoutsvc.CreateReq{UserID: 99, BookID: 3})
	require.Equal(t, checkoutsvc.ErrUserNotFound, checkoutsvc.Code(err))
	require.Zero(t, books.claims)
	require.Zero(t, ledger.inserts)
}

func TestCreate_BookMissing(t *testing.T) {
	books := &booksMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return nil, sql.ErrNoRows
		},
	}
	ledger := &ledgerMock{}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Create(context.Background(), checkoutsvc.CreateReq{UserID: 7, BookID: 404})
	require.Equal(t, checkoutsvc.ErrBookUnavailable, checkoutsvc.Code(err))
	require.Zero(t, books.claims)
	require.Zero(t, ledger.inserts)
}

func TestCreate_BookUnavailable(t *testing.T) {
	books := &booksMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			b := availableBook(id)
			b.Status = model.BookUnavailable
			return b, nil
		},
		claimFn: func(ctx context.Context, id int64) (bool, error) { return false, nil },
	}
	ledger := &ledgerMock{}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Create(context.Background(), checkoutsvc.CreateReq{UserID: 7, BookID: 3})
	require.Equal(t, checkoutsvc.ErrBookUnavailable, checkoutsvc.Code(err))
	require.Zero(t, ledger.inserts, "failed borrow must not open a checkout")
	require.Zero(t, books.releases, "failed claim has nothing to compensate")
}

func TestCreate_InsertFailureReleasesBook(t *testing.T) {
	books := &booksMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return availableBook(id), nil
		},
	}
	ledger := &ledgerMock{
		insertFn: func(ctx context.Context, c *model.Checkout) error {
			return errors.New("connection reset")
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Create(context.Background(), checkoutsvc.CreateReq{UserID: 7, BookID: 3})
	require.Error(t, err)
	require.Equal(t, checkoutsvc.ErrCode(""), checkoutsvc.Code(err), "storage failures stay uncoded")
	require.Equal(t, 1, books.releases, "book must not stay claimed without a checkout")
}

func TestCreate_StorageErrorOnClaim(t *testing.T) {
	books := &booksMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return availableBook(id), nil
		},
		claimFn: func(ctx context.Context, id int64) (bool, error) {
			return false, errors.New("db down")
		},
	}
	ledger := &ledgerMock{}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Create(context.Background(), checkoutsvc.CreateReq{UserID: 7, BookID: 3})
	require.Error(t, err)
	require.Equal(t, checkoutsvc.ErrCode(""), checkoutsvc.Code(err))
	require.Zero(t, ledger.inserts)
}

// --- return ---

func TestReturn_Success(t *testing.T) {
	books := &booksMock{}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return &model.Checkout{ID: id, UserID: 7, BookID: 3,
				BorrowedAt: time.Now().Add(-24 * time.Hour)}, nil
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	c, err := svc.Return(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, c.ReturnedAt)
	require.Equal(t, 1, books.releases)
}

func TestReturn_NotFound(t *testing.T) {
	books := &booksMock{}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Return(context.Background(), 404)
	require.Equal(t, checkoutsvc.ErrCheckoutNotFound, checkoutsvc.Code(err))
	require.Zero(t, books.releases, "unknown checkout must not touch any book")
}

func TestReturn_AlreadyReturned(t *testing.T) {
	done := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	books := &booksMock{}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return &model.Checkout{ID: id, UserID: 7, BookID: 3, ReturnedAt: &done}, nil
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Return(context.Background(), 11)
	require.Equal(t, checkoutsvc.ErrAlreadyReturned, checkoutsvc.Code(err))
	require.Zero(t, books.releases)
}

func TestReturn_StampFailureReclaimsBook(t *testing.T) {
	books := &booksMock{}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return &model.Checkout{ID: id, UserID: 7, BookID: 3}, nil
		},
		stampFn: func(ctx context.Context, id int64, at time.Time) (bool, error) {
			return false, errors.New("connection reset")
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Return(context.Background(), 11)
	require.Error(t, err)
	require.Equal(t, checkoutsvc.ErrCode(""), checkoutsvc.Code(err), "storage failures stay uncoded")
	require.Equal(t, 1, books.releases)
	require.Equal(t, 1, books.claims, "book must not stay AVAILABLE while its checkout is open")
}

func TestReturn_StampAndReclaimFailure(t *testing.T) {
	reclaimErr := errors.New("db down")
	books := &booksMock{
		claimFn: func(ctx context.Context, id int64) (bool, error) { return false, reclaimErr },
	}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return &model.Checkout{ID: id, UserID: 7, BookID: 3}, nil
		},
		stampFn: func(ctx context.Context, id int64, at time.Time) (bool, error) {
			return false, errors.New("connection reset")
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Return(context.Background(), 11)
	require.Error(t, err)
	require.ErrorIs(t, err, reclaimErr)
}

func TestReturn_ConcurrentStampLoses(t *testing.T) {
	books := &booksMock{}
	ledger := &ledgerMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Checkout, error) {
			return &model.Checkout{ID: id, UserID: 7, BookID: 3}, nil
		},
		stampFn: func(ctx context.Context, id int64, at time.Time) (bool, error) {
			return false, nil
		},
	}
	svc := checkoutsvc.New(books, ledger, &usersMock{})

	_, err := svc.Return(context.Background(), 11)
	require.Equal(t, checkoutsvc.ErrAlreadyReturned, checkoutsvc.Code(err))
}

// --- by book ---

func TestByBook_Success(t *testing.T) {
	ledger := &ledgerMock{
		latestFn: func(ctx context.Context, bookID int64) (*model.Checkout, error) {
			return &model.Checkout{ID: 5, BookID: bookID, Book: availableBook(bookID)}, nil
		},
	}
	svc := checkoutsvc.New(&booksMock{}, ledger, &usersMock{})

	c, err := svc.ByBook(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, c.Book)
	require.Equal(t, int64(3), c.Book.ID)
}

func TestByBook_NoHistory(t *testing.T) {
	ledger := &ledgerMock{
		latestFn: func(ctx context.Context, bookID int64) (*model.Checkout, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := checkoutsvc.New(&booksMock{}, ledger, &usersMock{})

	_, err := svc.ByBook(context.Background(), 3)
	require.Equal(t, checkoutsvc.ErrCheckoutNotFound, checkoutsvc.Code(err))
}

// --- in-memory store for lifecycle and race coverage ---

type memStore struct {
	mu        sync.Mutex
	books     map[int64]*model.Book
	checkouts map[int64]*model.Checkout
	nextID    int64
}

func newMemStore(books ...*model.Book) *memStore {
	s := &memStore{books: map[int64]*model.Book{}, checkouts: map[int64]*model.Checkout{}}
	for _, b := range books {
		s.books[b.ID] = b
	}
	return s
}

func (s *memStore) ByID(ctx context.Context, id int64) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) Claim(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok || b.Status != model.BookAvailable {
		return false, nil
	}
	b.Status = model.BookUnavailable
	return true, nil
}

func (s *memStore) Release(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		b.Status = model.BookAvailable
	}
	return nil
}

func (s *memStore) Insert(ctx context.Context, c *model.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.checkouts[c.ID] = &cp
	return nil
}

func (s *memStore) ByCheckoutID(ctx context.Context, id int64) (*model.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkouts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) StampReturned(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkouts[id]
	if !ok || c.ReturnedAt != nil {
		return false, nil
	}
	c.ReturnedAt = &at
	return true, nil
}

func (s *memStore) LatestByBook(ctx context.Context, bookID int64) (*model.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*model.Checkout
	for _, c := range s.checkouts {
		if c.BookID == bookID {
			all = append(all, c)
		}
	}
	if len(all) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].BorrowedAt.Equal(all[j].BorrowedAt) {
			return all[i].BorrowedAt.After(all[j].BorrowedAt)
		}
		return all[i].ID > all[j].ID
	})
	cp := *all[0]
	if b, ok := s.books[bookID]; ok {
		bc := *b
		cp.Book = &bc
	}
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, f checkoutsvc.Filter) ([]model.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Checkout
	for _, c := range s.checkouts {
		if f.BookID != nil && c.BookID != *f.BookID {
			continue
		}
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *memStore) Exists(ctx context.Context, id int64) (bool, error) { return true, nil }

// openCheckouts counts records with returned_at unset for a book.
func (s *memStore) openCheckouts(bookID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.checkouts {
		if c.BookID == bookID && c.ReturnedAt == nil {
			n++
		}
	}
	return n
}

type ledgerAdapter struct{ *memStore }

func (a ledgerAdapter) ByID(ctx context.Context, id int64) (*model.Checkout, error) {
	return a.ByCheckoutID(ctx, id)
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(availableBook(1))
	svc := checkoutsvc.New(store, ledgerAdapter{store}, store)

	c1, err := svc.Create(ctx, checkoutsvc.CreateReq{UserID: 7, BookID: 1, BorrowedAt: time.Now()})
	require.NoError(t, err)

	b, err := store.ByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.BookUnavailable, b.Status)
	require.Equal(t, 1, store.openCheckouts(1))

	// second borrow against the same book is gated
	_, err = svc.Create(ctx, checkoutsvc.CreateReq{UserID: 8, BookID: 1, BorrowedAt: time.Now()})
	require.Equal(t, checkoutsvc.ErrBookUnavailable, checkoutsvc.Code(err))

	returned, err := svc.Return(ctx, c1.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)

	b, err = store.ByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.BookAvailable, b.Status)
	require.Zero(t, store.openCheckouts(1))

	// the close transition fires at most once
	_, err = svc.Return(ctx, c1.ID)
	require.Equal(t, checkoutsvc.ErrAlreadyReturned, checkoutsvc.Code(err))

	latest, err := svc.ByBook(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, c1.ID, latest.ID)
	require.Equal(t, *returned.ReturnedAt, *latest.ReturnedAt)
	require.NotNil(t, latest.Book)

	// the book can be borrowed again after the cycle
	_, err = svc.Create(ctx, checkoutsvc.CreateReq{UserID: 8, BookID: 1, BorrowedAt: time.Now()})
	require.NoError(t, err)
}

func TestCreate_ConcurrentBorrowsSingleWinner(t *testing.T) {
	const n = 32
	ctx := context.Background()
	store := newMemStore(availableBook(1))
	svc := checkoutsvc.New(store, ledgerAdapter{store}, store)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, checkoutsvc.CreateReq{
				UserID: int64(i + 1), BookID: 1, BorrowedAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, checkoutsvc.ErrBookUnavailable, checkoutsvc.Code(err))
	}
	require.Equal(t, 1, wins, "exactly one concurrent borrow may succeed")
	require.Equal(t, 1, store.openCheckouts(1))
}
