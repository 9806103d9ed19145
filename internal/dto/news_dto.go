package dto

import "time"

// NewsItemResponse is one headline with its source link.
type NewsItemResponse struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewsResponse lists headlines and when they were fetched.
type NewsResponse struct {
	Items     []NewsItemResponse `json:"items"`
	FetchedAt time.Time          `json:"fetched_at"`
	Cached    bool               `json:"cached"`
}
