package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// homePage sends logged in users to the listing and everyone else to the login form
func (s *WebServer) homePage(c *gin.Context) {
	if s.sessionUser(c) != "" {
		c.Redirect(http.StatusFound, "/listarUsuarios")
		return
	}
	c.Redirect(http.StatusFound, "/identificarse")
}
