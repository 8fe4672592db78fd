package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type localObjects interface {
	Redeem(token, method string) (string, error)
	SaveStream(key string, r io.Reader) (int64, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

// FileHandler redeems signed URLs issued by the local object store.
type FileHandler struct {
	store   localObjects
	maxSize int64
	logger  *zap.Logger
}

// NewFileHandler creates a new handler. maxSize caps upload bodies; zero disables the cap.
func NewFileHandler(store localObjects, maxSize int64, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{store: store, maxSize: maxSize, logger: logger}
}

// Upload godoc
// @Summary Upload a binary to a signed URL
// @Tags Files
// @Accept octet-stream
// @Param token path string true "Signed token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [put]
func (h *FileHandler) Upload(c *gin.Context) {
	key, err := h.store.Redeem(c.Param("token"), http.MethodPut)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired upload link"))
		return
	}
	body := io.Reader(c.Request.Body)
	if h.maxSize > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)
	}
	written, err := h.store.SaveStream(key, body)
	if err != nil {
		if delErr := h.store.Delete(key); delErr != nil {
			h.logger.Warn("failed to remove partial upload", zap.String("object_key", key), zap.Error(delErr))
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrFileTooLarge, ""))
			return
		}
		h.logger.Error("failed to store upload", zap.String("object_key", key), zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to store file"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"object_key": key, "size": written}, nil)
}

// Download godoc
// @Summary Fetch a binary through a signed URL
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	key, err := h.store.Redeem(c.Param("token"), http.MethodGet)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link"))
		return
	}
	file, err := h.store.Open(key)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	name := path.Base(key)
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
