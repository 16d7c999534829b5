package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-redsocial/internal/config"
)

// Alert classes accepted in the tipoMensaje parameter
const (
	AlertSuccess = "alert-success"
	AlertInfo    = "alert-info"
	AlertWarning = "alert-warning"
	AlertDanger  = "alert-danger"
)

// User-facing messages
const (
	MsgPasswordMismatch = "Las contraseñas no coinciden"
	MsgEmailTaken       = "Email ya registrado en el sistema"
	MsgRegisterFailed   = "Error al registrar usuario"
	MsgRegistered       = "Nuevo usuario registrado"
	MsgBadCredentials   = "Email o password incorrecto"
	MsgEmailRequired    = "El email es obligatorio"
)

var alertClasses = map[string]bool{
	AlertSuccess: true,
	AlertInfo:    true,
	AlertWarning: true,
	AlertDanger:  true,
}

// getBaseTemplateData creates a TemplateData struct with common information including user auth
func (s *WebServer) getBaseTemplateData(c *gin.Context, title string) TemplateData {
	data := TemplateData{
		Title:       title,
		CurrentTime: time.Now().Format("2006-01-02 15:04:05"),
		AppVersion:  config.AppVersion,
		User:        s.sessionUser(c),
	}

	if msg := c.Query("mensaje"); msg != "" {
		data.Mensaje = msg
		data.TipoMensaje = AlertInfo
		if kind := c.Query("tipoMensaje"); alertClasses[kind] {
			data.TipoMensaje = kind
		}
	}
	return data
}

// messageURL builds path?mensaje=...&tipoMensaje=...
func messageURL(path, message, kind string) string {
	q := url.Values{}
	q.Set("mensaje", message)
	q.Set("tipoMensaje", kind)
	return path + "?" + q.Encode()
}

// redirectWithMessage sends the browser to path carrying a flash message
func redirectWithMessage(c *gin.Context, path, message, kind string) {
	c.Redirect(http.StatusFound, messageURL(path, message, kind))
}

// renderTemplate renders a page template with its data
func (s *WebServer) renderTemplate(c *gin.Context, templateName string, data any) {
	s.renderStatus(c, http.StatusOK, templateName, data)
}

func (s *WebServer) renderStatus(c *gin.Context, status int, templateName string, data any) {
	html, err := s.Renderer.Render(templateName, data)
	if err != nil {
		s.requestLogger(c).Error("failed to render template",
			zap.String("template", templateName), zap.Error(err))
		c.String(http.StatusInternalServerError, "Error interno")
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(html))
}

// renderError renders the error page. errstring is logged, never shown.
func (s *WebServer) renderError(c *gin.Context, statusCode int, message string, errstring string) {
	errorData := struct {
		TemplateData
		Error      string
		StatusCode int
	}{
		TemplateData: s.getBaseTemplateData(c, "Error"),
		Error:        message,
		StatusCode:   statusCode,
	}
	// Don't echo query messages on the error page
	errorData.Mensaje, errorData.TipoMensaje = "", ""

	log := s.requestLogger(c)
	if statusCode >= http.StatusInternalServerError {
		log.Error("error page", zap.Int("status", statusCode), zap.String("message", message), zap.String("detail", errstring))
	} else {
		log.Debug("error page", zap.Int("status", statusCode), zap.String("message", message), zap.String("detail", errstring))
	}

	s.renderStatus(c, statusCode, "error.html", errorData)
}
