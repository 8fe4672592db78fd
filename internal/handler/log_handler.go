package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/export"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type operationLogService interface {
	Search(ctx context.Context, filter models.OperationLogFilter) ([]models.OperationLog, *models.Pagination, error)
	Export(ctx context.Context, filter models.OperationLogFilter, format string) (*export.File, error)
}

// LogHandler serves the operation log.
type LogHandler struct {
	service operationLogService
}

// NewLogHandler creates a new handler.
func NewLogHandler(svc operationLogService) *LogHandler {
	return &LogHandler{service: svc}
}

// List godoc
// @Summary Search operation logs
// @Tags Logs
// @Produce json
// @Param user_id query string false "User ID"
// @Param operation_type query string false "Operation type"
// @Param object_id query string false "Object ID"
// @Param from query string false "Start time (RFC3339)"
// @Param to query string false "End time (RFC3339)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /logs [get]
func (h *LogHandler) List(c *gin.Context) {
	query, filter, ok := bindLogQuery(c)
	if !ok {
		return
	}
	filter.Page, filter.PageSize = query.Page, query.PageSize
	logs, page, err := h.service.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, page)
}

// Export godoc
// @Summary Export operation logs
// @Tags Logs
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /logs/export [get]
func (h *LogHandler) Export(c *gin.Context) {
	query, filter, ok := bindLogQuery(c)
	if !ok {
		return
	}
	file, err := h.service.Export(c.Request.Context(), filter, strings.ToLower(strings.TrimSpace(query.Format)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Body)
}

func bindLogQuery(c *gin.Context) (dto.OperationLogQuery, models.OperationLogFilter, bool) {
	var query dto.OperationLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, models.OperationLogFilter{}, false
	}
	filter := models.OperationLogFilter{
		UserID:        strings.TrimSpace(query.UserID),
		OperationType: models.OperationType(strings.ToUpper(strings.TrimSpace(query.OperationType))),
		ObjectID:      strings.TrimSpace(query.ObjectID),
	}
	var err error
	if filter.From, err = parseTime(query.From); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "from must be RFC3339"))
		return query, filter, false
	}
	if filter.To, err = parseTime(query.To); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "to must be RFC3339"))
		return query, filter, false
	}
	return query, filter, true
}

func parseTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
