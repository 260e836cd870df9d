package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// imageTypes are the file types a task image_url may point at.
var imageTypes = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// mountStatic serves the browser frontend. The build directory is expected to
// hold index.html, which is also returned for unknown non-API paths so the
// client-side routes (/, /rewards) survive a reload, plus an optional assets/
// directory and favicon.ico. Without index.html the service runs API only.
func (s *Server) mountStatic() {
	s.mountImages()

	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	if !isDir(s.staticDir) {
		s.logger.Warn("static directory missing", slog.String("path", s.staticDir))
		return
	}

	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("index.html not found; API only mode", slog.String("path", index))
	} else {
		s.engine.GET("/", func(c *gin.Context) { c.File(index) })
		s.engine.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
				return
			}
			c.File(index)
		})
	}

	if assets := filepath.Join(s.staticDir, "assets"); isDir(assets) {
		s.engine.StaticFS("/assets", gin.Dir(assets, false))
	}
	if favicon := filepath.Join(s.staticDir, "favicon.ico"); fileExists(favicon) {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

// mountImages serves the pictures referenced by task image_url values of the
// form /images/<file>. Only flat image files are served.
func (s *Server) mountImages() {
	dir := s.imageDir
	if dir == "" && s.staticDir != "" {
		dir = filepath.Join(s.staticDir, "images")
	}
	if dir == "" || !isDir(dir) {
		return
	}

	s.engine.GET("/images/:name", func(c *gin.Context) {
		name := c.Param("name")
		if name != filepath.Base(name) || !imageTypes[strings.ToLower(filepath.Ext(name))] {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.File(path)
	})
	s.logger.Info("serving task images", slog.String("path", dir))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
