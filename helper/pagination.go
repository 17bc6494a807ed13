package helper

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type PageLink struct {
	Number int
	URL    string
	Active bool
}

type Pagination struct {
	Total       int64
	PerPage     int
	CurrentPage int
	TotalPages  int
	Prev        string
	Next        string
	First       string
	Last        string
	Pages       []PageLink
}

// CurrentPage reads ?page=, falling back to 1.
func (u *HTTPHelper) CurrentPage(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// get pagination URL. Links are relative to the site root so the request's
// Host header never ends up in them. Every other query parameter of the
// current request is kept, so search links stay on the same query.
func (u *HTTPHelper) GetPagingUrl(c *gin.Context, page int) string {
	query := c.Request.URL.Query()
	query.Set("page", strconv.Itoa(page))
	return c.Request.URL.Path + "?" + query.Encode()
}

// Set pagination links
func (u *HTTPHelper) GeneratePaging(c *gin.Context, page, perPage int, totalRecord int64) Pagination {
	totalPages := 0
	if perPage > 0 {
		totalPages = int((totalRecord + int64(perPage) - 1) / int64(perPage))
	}

	p := Pagination{
		Total:       totalRecord,
		PerPage:     perPage,
		CurrentPage: page,
		TotalPages:  totalPages,
	}

	if page > 1 && page <= totalPages {
		p.Prev = u.GetPagingUrl(c, page-1)
		p.First = u.GetPagingUrl(c, 1)
	}
	if page < totalPages {
		p.Next = u.GetPagingUrl(c, page+1)
		p.Last = u.GetPagingUrl(c, totalPages)
	}

	for n := 1; n <= totalPages; n++ {
		p.Pages = append(p.Pages, PageLink{Number: n, URL: u.GetPagingUrl(c, n), Active: n == page})
	}
	return p
}
