package web

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-redsocial/internal/database"
	"github.com/go-while/go-redsocial/internal/models"
)

// registerPage displays the registration form
func (s *WebServer) registerPage(c *gin.Context) {
	s.renderTemplate(c, "registro.html", s.getBaseTemplateData(c, "Registrarse"))
}

// registerSubmit processes registration form submission
func (s *WebServer) registerSubmit(c *gin.Context) {
	email := models.NormalizeText(c.PostForm("email"))
	displayName := models.NormalizeText(c.PostForm("nombre"))
	password := c.PostForm("password")

	if password != c.PostForm("password2") {
		redirectWithMessage(c, "/registrarse", MsgPasswordMismatch, AlertDanger)
		return
	}
	if email == "" {
		redirectWithMessage(c, "/registrarse", MsgEmailRequired, AlertDanger)
		return
	}

	account := &models.Account{
		Email:          email,
		DisplayName:    displayName,
		PasswordDigest: s.hasher.Digest(password),
	}
	ctx := c.Request.Context()
	log := s.requestLogger(c).With(zap.String("email", email))

	existing, err := s.Store.FindAccounts(ctx, models.Criteria{Email: email})
	if err != nil {
		log.Error("registration lookup failed", zap.Error(err))
		redirectWithMessage(c, "/registrarse", MsgRegisterFailed, AlertDanger)
		return
	}
	if len(existing) > 0 {
		redirectWithMessage(c, "/registrarse", MsgEmailTaken, AlertDanger)
		return
	}

	id, err := s.Store.InsertAccount(ctx, account)
	switch {
	case errors.Is(err, database.ErrDuplicateEmail):
		// lost a race against a concurrent registration
		redirectWithMessage(c, "/registrarse", MsgEmailTaken, AlertDanger)
		return
	case err != nil:
		log.Error("registration insert failed", zap.Error(err))
		redirectWithMessage(c, "/registrarse", MsgRegisterFailed, AlertDanger)
		return
	case id <= 0:
		log.Error("registration insert returned no id")
		redirectWithMessage(c, "/registrarse", MsgRegisterFailed, AlertDanger)
		return
	}

	log.Info("account registered", zap.Int64("id", id))
	redirectWithMessage(c, "/identificarse", MsgRegistered, AlertSuccess)
}
