package book

type CreateBookReq struct {
	Title         string  `json:"title" validate:"required"`
	Author        string  `json:"author" validate:"required"`
	Genre         *string `json:"genre"`
	Pages         int64   `json:"pages" validate:"gte=0"`
	YearPublished int64   `json:"year_published" validate:"required"`
	ISBN13        int64   `json:"isbn13" validate:"required"`
	ImgURI        *string `json:"img_uri"`
}

// UpdateBookReq is a partial update; absent fields stay untouched.
// Status is not accepted here: availability belongs to the checkout
// lifecycle.
type UpdateBookReq struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Genre         *string `json:"genre"`
	Pages         *int64  `json:"pages" validate:"omitempty,gte=0"`
	YearPublished *int64  `json:"year_published"`
	ISBN13        *int64  `json:"isbn13"`
	ImgURI        *string `json:"img_uri"`
}

type QueryBookReq struct {
	Author string `query:"author"`
	Title  string `query:"title"`
	Pages  *int64 `query:"pages"`
	Limit  *int64 `query:"limit"`
}
