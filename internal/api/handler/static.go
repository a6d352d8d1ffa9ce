package handler

import (
	"bytes"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"proctorportal/backend/internal/clientconfig"
	"strings"

	"github.com/gin-gonic/gin"
)

// ConfigScript renders the browser's identity client configuration.
func (h *Handler) ConfigScript(c *gin.Context) {
	var buf bytes.Buffer
	if err := clientconfig.Render(&buf, h.ClientOptions); err != nil {
		log.Printf("ERROR: Failed to render client config: %v", err)
		c.String(http.StatusInternalServerError, h.t(c, "internal_error"))
		return
	}
	c.Data(http.StatusOK, clientconfig.ContentType+"; charset=utf-8", buf.Bytes())
}

// Index serves the landing page.
func (h *Handler) Index(c *gin.Context) {
	h.serveFile(c, "index.html")
}

// NotFound serves static assets from the templates directory and falls
// back to the error page.
func (h *Handler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	}
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		if name, ok := h.assetPath(c.Request.URL.Path); ok {
			c.File(name)
			return
		}
	}

	page, err := os.ReadFile(filepath.Join(h.TemplatesDir, "error.html"))
	if err != nil {
		c.String(http.StatusNotFound, "Not Found")
		return
	}
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", page)
}

func (h *Handler) serveFile(c *gin.Context, name string) {
	full := filepath.Join(h.TemplatesDir, name)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		h.NotFound(c)
		return
	}
	c.File(full)
}

// assetPath maps a URL path to a regular file under TemplatesDir.
func (h *Handler) assetPath(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		return "", false
	}
	full := filepath.Join(h.TemplatesDir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}
