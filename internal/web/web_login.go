package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-redsocial/internal/models"
)

// loginPage displays the login form
func (s *WebServer) loginPage(c *gin.Context) {
	s.renderTemplate(c, "identificacion.html", s.getBaseTemplateData(c, "Identificarse"))
}

// loginSubmit processes login form submission
func (s *WebServer) loginSubmit(c *gin.Context) {
	email := models.NormalizeText(c.PostForm("email"))
	if email == "" {
		s.loginFailed(c)
		return
	}
	criteria := models.Criteria{
		Email:          email,
		PasswordDigest: s.hasher.Digest(c.PostForm("password")),
	}

	accounts, err := s.Store.FindAccounts(c.Request.Context(), criteria)
	if err != nil {
		s.requestLogger(c).Error("login lookup failed", zap.Error(err))
	}
	// Unknown email, wrong password and store failures look the same
	if err != nil || len(accounts) == 0 {
		s.loginFailed(c)
		return
	}

	s.setSessionUser(c, accounts[0].Email)
	s.requestLogger(c).Info("login", zap.String("email", accounts[0].Email))
	c.Redirect(http.StatusFound, "/listarUsuarios")
}

// loginFailed clears the session identity and sends the uniform failure message
func (s *WebServer) loginFailed(c *gin.Context) {
	s.clearSessionUser(c)
	redirectWithMessage(c, "/identificarse", MsgBadCredentials, AlertDanger)
}

// logout clears the session identity
func (s *WebServer) logout(c *gin.Context) {
	s.clearSessionUser(c)
	c.Redirect(http.StatusFound, "/identificarse")
}
