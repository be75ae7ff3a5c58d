// model/checkout.go
package model

import "time"

// Checkout is a single borrow cycle. ReturnedAt unset means the book is
// still on loan; once set the record is closed for good.
type Checkout struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	BookID     int64      `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`

	// Book is populated on by-book lookups only.
	Book *Book `json:"book,omitempty"`
}
