package product

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/services"
)

const maxImageBytes = 5 << 20

// UploadImage envoie l'image (champ multipart "file") dans MinIO et
// l'attache au produit.
func (h *ProductHandler) UploadImage(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)
	file, err := c.FormFile("file")
	if err != nil {
		handlers.Field(c, "file", "No file was submitted.")
		return
	}

	url, err := h.images.Upload(c.Request.Context(), p.ID, file)
	switch {
	case errors.Is(err, services.ErrStorageDisabled):
		handlers.Detail(c, http.StatusServiceUnavailable, "Image storage is not available.")
		return
	case errors.Is(err, services.ErrUnsupportedImage):
		handlers.Field(c, "file", "Unsupported image type.")
		return
	case err != nil:
		handlers.Internal(c, h.logger, err)
		return
	}

	if err := h.store.SetProductImage(c.Request.Context(), p.ID, url); err != nil {
		h.writeError(c, err)
		return
	}
	p.ImageURL = url
	h.index.IndexAsync(c.Request.Context(), *p)
	h.logger.Info("🖼️ Image attachée au produit", zap.String("product_id", p.ID.String()))
	c.JSON(http.StatusOK, gin.H{"image": url})
}
