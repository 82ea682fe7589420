package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page  int
	Limit int
	Skip  int
}

// Metadata describes a page of results.
type Metadata struct {
	TotalItems  int64 `json:"totalItems"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// Extract reads ?page and ?limit with the package defaults.
func Extract(c *gin.Context) Params {
	return ExtractWithDefault(c, DefaultLimit)
}

// ExtractWithDefault reads ?page and ?limit. Missing or invalid values fall back
// to page 1 and defaultLimit; limit is capped at MaxLimit.
func ExtractWithDefault(c *gin.Context, defaultLimit int) Params {
	return New(parsePositiveInt(c.Query("page"), DefaultPage), parsePositiveInt(c.Query("limit"), defaultLimit))
}

// New normalises a page request.
func New(page, limit int) Params {
	page = max(page, 1)
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	return Params{Page: page, Limit: limit, Skip: (page - 1) * limit}
}

// MetadataFrom builds response metadata given totals.
func MetadataFrom(total int64, params Params) Metadata {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = int((total + int64(params.Limit) - 1) / int64(params.Limit))
	}

	return Metadata{
		TotalItems:  total,
		CurrentPage: params.Page,
		PageSize:    params.Limit,
		TotalPages:  totalPages,
		HasNextPage: params.Page < totalPages,
		HasPrevPage: params.Page > 1,
	}
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
