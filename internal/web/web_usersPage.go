package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/go-while/go-redsocial/internal/models"
)

// UsersPageData represents data for the account listing
type UsersPageData struct {
	TemplateData
	Usuarios   []*models.Account
	PgActual   int
	PgUltima   int
	Pagination *models.PaginationInfo
}

// parsePage reads the pg query value. Absent, non-numeric and non-positive
// values all mean the first page. Values past models.MaxPage are clamped.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	if page > models.MaxPage {
		return models.MaxPage
	}
	return page
}

// usersPage lists the registered accounts, five per page
func (s *WebServer) usersPage(c *gin.Context) {
	page := parsePage(c.Query("pg"))

	accounts, total, err := s.Store.FindAccountsPage(c.Request.Context(), page)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Error al listar usuarios", err.Error())
		return
	}

	data := UsersPageData{
		TemplateData: s.getBaseTemplateData(c, "Usuarios"),
		Usuarios:     accounts,
		PgActual:     page,
		PgUltima:     models.LastPage(total, models.AccountsPerPage),
		Pagination:   models.NewPaginationInfo(page, models.AccountsPerPage, total),
	}
	s.renderTemplate(c, "usuarios.html", data)
}
