package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// ParsePage reads ?page= and ?perPage= falling back to the first page of
// DefaultPerPage rows. perPage is capped at MaxPerPage.
func ParsePage(c *gin.Context) Page {
	p := Page{Page: 1, PerPage: DefaultPerPage}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("perPage")); err == nil && v > 0 {
		p.PerPage = v
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}
