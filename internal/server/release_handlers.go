package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Latest desktop release
// @Description Proxies the GitHub releases API and groups installers by platform.
// @Description Upstream failures return a placeholder release with error=true.
// @Tags releases
// @Produce json
// @Success 200 {object} releases.Release
// @Router /api/releases [get]
func (s *Server) getLatestRelease(c *gin.Context) {
	release := s.releases.Latest(c.Request.Context())

	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, release)
}
