// Package models defines the data structures shared by the database and web layers
package models

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// AccountsPerPage is the fixed page size of the account listing
const AccountsPerPage = 5

// MaxPage is the highest page whose offset still fits in an int
const MaxPage = math.MaxInt / AccountsPerPage

// Account represents a registered user of the social network
type Account struct {
	ID             int64     `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	PasswordDigest string    `json:"-" db:"password_digest"` // hex HMAC-SHA256, never rendered
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Criteria is a partial-field match used to look up accounts.
// Empty fields are ignored. A zero Criteria matches every account.
type Criteria struct {
	Email          string
	PasswordDigest string
}

// IsZero reports whether no field is set
func (c Criteria) IsZero() bool {
	return c.Email == "" && c.PasswordDigest == ""
}

// PaginationInfo represents pagination information for templates
type PaginationInfo struct {
	CurrentPage int
	PageSize    int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	HasPrev     bool
	NextPage    int
	PrevPage    int
}

// LastPage returns the number of the last page holding totalCount items.
// An empty result has a last page of 0.
func LastPage(totalCount, pageSize int) int {
	if pageSize <= 0 || totalCount <= 0 {
		return 0
	}
	last := totalCount / pageSize
	if totalCount%pageSize > 0 {
		last++
	}
	return last
}

// NewPaginationInfo creates pagination info
func NewPaginationInfo(page, pageSize, totalCount int) *PaginationInfo {
	totalPages := LastPage(totalCount, pageSize)
	return &PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
		NextPage:    page + 1,
		PrevPage:    page - 1,
	}
}

// Pages lists every page number from 1 to TotalPages for the pager
func (p *PaginationInfo) Pages() []int {
	pages := make([]int, 0, p.TotalPages)
	for i := 1; i <= p.TotalPages; i++ {
		pages = append(pages, i)
	}
	return pages
}

// NormalizeText trims s, replaces invalid UTF-8 and converts it to NFC so that
// visually identical input is stored and matched the same way.
func NormalizeText(s string) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "\uFFFD")
	return norm.NFC.String(s)
}
