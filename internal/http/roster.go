package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"conduit/internal/domain"
	"conduit/internal/roster"
	"conduit/internal/storage"
)

func (h *Handler) getRoster(c *gin.Context) {
	stats, err := h.roster.ComputeRoster(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster.Rows(stats))
}

type ExportResponse struct {
	ID           int64   `json:"id"`
	Status       string  `json:"status"`
	Rows         int     `json:"rows"`
	Location     string  `json:"location,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
	CompletedAt  *string `json:"completedAt,omitempty"`
	DownloadURL  string  `json:"downloadUrl,omitempty"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func (h *Handler) exportsEnabled(c *gin.Context) bool {
	if h.exporter == nil || h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export storage not configured"})
		return false
	}
	return true
}

func (h *Handler) createExport(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	export, err := h.exports.CreateExport(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.exporter.Enqueue(c.Request.Context(), export.ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, exportToResponse(*export))
}

func (h *Handler) listExports(c *gin.Context) {
	exports, err := h.exports.ListExports(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]ExportResponse, len(exports))
	for i := range exports {
		resp[i] = exportToResponse(exports[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getExport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid export id"})
		return
	}

	export, err := h.exports.GetExport(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := exportToResponse(*export)
	if export.Status == domain.ExportStatusCompleted && h.storage != nil {
		key, err := storage.SplitLocation(export.Location, h.bucket)
		if err == nil {
			resp.DownloadURL, err = h.storage.PresignGet(c.Request.Context(), h.bucket, key, h.presignTTL)
		}
		if err != nil {
			h.logger.WithField("export_id", export.ID).Warnf("presign export: %v", err)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listExportObjects(c *gin.Context) {
	if !h.exportsEnabled(c) {
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.keyPrefix)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = StorageObjectResponse{
			Key:          objects[i].Key,
			Size:         objects[i].Size,
			LastModified: formatTimePtr(objects[i].LastModified),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func exportToResponse(export domain.Export) ExportResponse {
	return ExportResponse{
		ID:           export.ID,
		Status:       string(export.Status),
		Rows:         export.Rows,
		Location:     export.Location,
		ErrorMessage: export.ErrorMessage,
		CreatedAt:    formatTime(export.CreatedAt),
		UpdatedAt:    formatTime(export.UpdatedAt),
		CompletedAt:  formatTimePtr(export.CompletedAt),
	}
}
