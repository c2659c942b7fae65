package musinsa

import "encoding/json"

// reviewListResponse mirrors the review list endpoint payload. Only
// the fields the crawler consumes are declared.
type reviewListResponse struct {
	Data struct {
		List []apiReview `json:"list"`
		Page struct {
			TotalCount int `json:"totalCount"`
			LastPage   int `json:"lastPage"`
		} `json:"page"`
	} `json:"data"`
}

// apiReview is one review entry. Grade arrives as a string in some
// payload versions and as a number in others.
type apiReview struct {
	No         int64       `json:"no"`
	Content    string      `json:"content"`
	Grade      json.Number `json:"grade"`
	CreateDate string      `json:"createDate"`
	UserName   string      `json:"userNickName"`
}

// ldProduct is the schema.org Product block embedded in the product
// page, used as a fallback when the review API is unavailable.
type ldProduct struct {
	Type   string `json:"@type"`
	Review []struct {
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
		ReviewBody   string `json:"reviewBody"`
		DatePublished string `json:"datePublished"`
		ReviewRating struct {
			RatingValue json.Number `json:"ratingValue"`
		} `json:"reviewRating"`
	} `json:"review"`
}
