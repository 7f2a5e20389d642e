package utils

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
)

// Pagination is the envelope metadata attached to every list response.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalPosts  int64 `json:"total_posts"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// NewPagination computes page metadata from a total row count.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalPosts:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// ParsePageLimit reads ?page= and ?limit= from the query string.
// Values outside page>=1 and 1<=limit<=50 are rejected rather than
// clamped so clients learn about bad requests.
func ParsePageLimit(ctx *gin.Context) (page, limit int, err error) {
	page = DefaultPage
	limit = DefaultLimit

	if raw := ctx.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
	}
	if raw := ctx.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", MaxLimit)
		}
	}
	return page, limit, nil
}
