package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/filestore"
	"github.com/xxxsen/estate/internal/pkg/errcode"
	"github.com/xxxsen/estate/internal/pkg/response"
	"github.com/xxxsen/estate/internal/service"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type FileHandler struct {
	store     filestore.Store
	listings  *service.PropertyService
	maxUpload int64
}

func NewFileHandler(store filestore.Store, listings *service.PropertyService, maxUpload int64) *FileHandler {
	return &FileHandler{store: store, listings: listings, maxUpload: maxUpload}
}

// UploadListingImage stores one image for a listing the caller owns.
func (h *FileHandler) UploadListingImage(c *gin.Context) {
	actor := getActor(c)
	listingID := c.Param("id")
	if err := h.listings.CheckCanAddImage(c.Request.Context(), actor, listingID); err != nil {
		handleError(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		response.Error(c, errcode.ErrInvalidFile, "file too large, max "+uploadLimitText(h.maxUpload))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	contentType, err := detectContentType(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		response.Error(c, errcode.ErrInvalidFile, "unsupported image type")
		return
	}

	key := buildFileKey(listingID, ext)
	if err := h.store.Save(c.Request.Context(), key, opened, file.Size); err != nil {
		handleError(c, err)
		return
	}
	img, err := h.listings.AddImage(c.Request.Context(), actor, listingID, key, h.store.URL(key, requestBaseURL(c)))
	if err != nil {
		// the cap may have filled between the pre-check and here
		if derr := h.store.Delete(c.Request.Context(), key); derr != nil {
			logutil.GetLogger(c.Request.Context()).Warn("drop unattached image failed",
				zap.String("key", key), zap.Error(derr))
		}
		handleError(c, err)
		return
	}
	response.Success(c, img)
}

func (h *FileHandler) Get(c *gin.Context) {
	if h.store.Type() != "local" {
		c.Status(http.StatusNotFound)
		return
	}
	key := c.Param("key")
	if !filestore.ValidKey(key) {
		c.Status(http.StatusBadRequest)
		return
	}
	file, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(c.Writer, file)
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}

func detectContentType(file filestore.ReadSeekCloser) (string, error) {
	buf := make([]byte, 512)
	read, err := file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:read]), nil
}

func buildFileKey(listingID, ext string) string {
	base := randomHex(8)
	if listingID != "" {
		base = listingID + "_" + base
	}
	return base + strings.ToLower(ext)
}

func randomHex(size int) string {
	if size <= 0 {
		return ""
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// uploadLimitText renders the upload cap for error messages, rounding sub-megabyte
// limits up to 1MB and keeping a fractional part otherwise (e.g. "2.5MB").
func uploadLimitText(limit int64) string {
	const mb = 1 << 20
	if limit <= 0 {
		return "0MB"
	}
	if limit < mb {
		return "1MB"
	}
	return strconv.FormatFloat(float64(limit)/mb, 'f', -1, 64) + "MB"
}
