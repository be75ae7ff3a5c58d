// model/book.go
package model

type BookStatus string

const (
	BookAvailable   BookStatus = "AVAILABLE"
	BookUnavailable BookStatus = "UNAVAILABLE"
)

type Book struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Genre         *string    `json:"genre,omitempty"`
	Pages         int64      `json:"pages"`
	YearPublished int64      `json:"year_published"`
	ISBN13        int64      `json:"isbn13"`
	ImgURI        *string    `json:"img_uri,omitempty"`
	Status        BookStatus `json:"status"`
}
