package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apricopt/zoro-web/internal/handoff"
)

// CallbackQuery is what the backend appends when it redirects after OAuth sign-in
type CallbackQuery struct {
	Token string `form:"token" validate:"omitempty,max=4096,bearer"`
	Error string `form:"error"`
}

// @Summary Desktop handoff after OAuth
// @Description Redirects the browser to the desktop application's callback URL with the issued token
// @Tags auth
// @Param token query string false "Issued bearer token"
// @Param error query string false "Error reported by the identity provider"
// @Success 302
// @Failure 400 {object} map[string]interface{}
// @Router /auth/callback [get]
func (s *Server) authCallback(c *gin.Context) {
	var q CallbackQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid callback parameters")
		return
	}

	if q.Error != "" {
		respondWithError(c, s.logger, http.StatusBadRequest, errors.New(q.Error), "Authentication failed: "+q.Error)
		return
	}

	if q.Token == "" {
		respondWithError(c, s.logger, http.StatusBadRequest, errors.New("missing token"), "No authentication token received")
		return
	}

	if err := s.validator.Struct(&q); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid authentication token")
		return
	}

	target, err := handoff.URL(s.config.API.CallbackURL, q.Token)
	if err != nil {
		s.logger.Error().Err(err).Msg("Desktop callback URL misconfigured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Redirect(http.StatusFound, target)
}
