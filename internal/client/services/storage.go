package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/filex"
)

// StorageService uploads product images and avatars and returns their
// public URLs. Failures are returned as-is; nothing is retried.
type StorageService interface {
	UploadProductImage(ctx context.Context, f models.Upload, productID string) (string, error)
	UploadUserAvatar(ctx context.Context, f models.Upload, userID string) (string, error)
	DeleteFile(ctx context.Context, bucket, path string) error
}

type storageService struct {
	blobs gateway.BlobGateway
	now   func() time.Time
}

func NewStorageService(blobs gateway.BlobGateway) StorageService {
	return &storageService{blobs: blobs, now: time.Now}
}

// objectPath builds "{dir}/{owner}-{unix millis}.{ext}".
func (s *storageService) objectPath(dir, owner, name string) string {
	return fmt.Sprintf("%s/%s-%d.%s", dir, owner, s.now().UnixMilli(), filex.Ext(name))
}

func (s *storageService) upload(ctx context.Context, bucket, path string, f models.Upload) (string, error) {
	if err := s.blobs.Upload(ctx, bucket, path, f.Body, f.ContentType, f.Size); err != nil {
		return "", err
	}
	return s.blobs.PublicURL(bucket, path), nil
}

func (s *storageService) UploadProductImage(ctx context.Context, f models.Upload, productID string) (string, error) {
	return s.upload(ctx, common.BucketProductImages, s.objectPath("products", productID, f.Name), f)
}

func (s *storageService) UploadUserAvatar(ctx context.Context, f models.Upload, userID string) (string, error) {
	return s.upload(ctx, common.BucketAvatars, s.objectPath("avatars", userID, f.Name), f)
}

func (s *storageService) DeleteFile(ctx context.Context, bucket, path string) error {
	return s.blobs.Remove(ctx, bucket, []string{path})
}
