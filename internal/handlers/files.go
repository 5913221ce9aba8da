package handlers

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"heysheet/internal/storage"

	"github.com/gin-gonic/gin"
)

// FilesHandler serves local storage objects through signed URLs.
type FilesHandler struct {
	storage *storage.LocalStorageClient
}

func NewFilesHandler(localStorage *storage.LocalStorageClient) *FilesHandler {
	return &FilesHandler{storage: localStorage}
}

// ServeFile GET /files/*filepath?expires=<unix>&signature=<hmac>
func (h *FilesHandler) ServeFile(c *gin.Context) {
	objectName := strings.TrimPrefix(c.Param("filepath"), "/")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file path required"})
		return
	}
	if _, err := h.storage.Resolve(objectName); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid file path"})
		return
	}

	expiresStr := c.Query("expires")
	signature := c.Query("signature")
	if signature == "" || expiresStr == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "signed URL required"})
		return
	}
	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires parameter"})
		return
	}
	if !h.storage.VerifySignedURL(objectName, expiresAt, signature) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired signature"})
		return
	}

	file, err := h.storage.ReadFile(c.Request.Context(), objectName)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid file path"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	defer file.Close()

	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		log.Printf("files: failed to stream %s: %v", objectName, err)
	}
}
