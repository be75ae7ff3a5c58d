package checkout

import "time"

type CreateCheckoutReq struct {
	BorrowedAt time.Time `json:"borrowed_at" validate:"required"`
	UserID     int64     `json:"user_id" validate:"required,gt=0"`
	BookID     int64     `json:"book_id" validate:"required,gt=0"`
}

// QueryCheckoutReq filters GET /checkouts; timestamps are RFC3339.
type QueryCheckoutReq struct {
	UserID     *int64 `query:"user_id"`
	BookID     *int64 `query:"book_id"`
	BorrowedAt string `query:"borrowed_at"`
	ReturnedAt string `query:"returned_at"`
}
