package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"marketplace_back_end/internal/config"
)

// ErrStorageDisabled : MinIO n'est pas configuré.
var ErrStorageDisabled = errors.New("image storage is not configured")

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedImage : type de fichier refusé.
var ErrUnsupportedImage = errors.New("Unsupported image type.")

// ImageStore range les images produit dans MinIO.
type ImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewImageStore accepte un client nil (stockage désactivé).
func NewImageStore(client *minio.Client, cfg config.MinIO, logger *zap.Logger) *ImageStore {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" && client != nil {
		publicURL = client.EndpointURL().String()
	}
	return &ImageStore{client: client, bucket: cfg.Bucket, publicURL: publicURL, logger: logger}
}

func (s *ImageStore) Enabled() bool { return s.client != nil }

// Upload envoie l'image d'un produit et renvoie son URL publique.
func (s *ImageStore) Upload(ctx context.Context, productID uuid.UUID, file *multipart.FileHeader) (string, error) {
	if s.client == nil {
		return "", ErrStorageDisabled
	}

	contentType := file.Header.Get("Content-Type")
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}

	f, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer f.Close()

	key := path.Join("products", productID.String(), uuid.NewString()+ext)
	if _, err := s.client.PutObject(ctx, s.bucket, key, f, file.Size,
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", errors.Wrap(err, "put object")
	}

	url := fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
	s.logger.Info("🖼️ Image produit envoyée", zap.String("product_id", productID.String()), zap.String("key", key))
	return url, nil
}
