package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

// openUpload opens a local file for upload. The caller closes the file.
func openUpload(path string) (models.Upload, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Upload{}, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return models.Upload{}, nil, err
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return models.Upload{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        st.Size(),
		Body:        f,
	}, f, nil
}

func (a *App) requireStorage() error {
	if a.storage == nil {
		return fmt.Errorf("file storage: %w", common.ErrNotConfigured)
	}
	return nil
}

// Upload stores a product picture and points the product at it.
func (a *App) Upload(ctx context.Context, productID, path string) error {
	if err := a.requireDashboard(); err != nil {
		return err
	}
	if err := a.requireStorage(); err != nil {
		return err
	}

	up, f, err := openUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := a.storage.UploadProductImage(ctx, up, productID)
	if err != nil {
		return err
	}
	if _, err := a.products.Update(ctx, productID, models.ProductPatch{ImageURL: &url}); err != nil {
		return err
	}
	a.println("Image:", url)
	return nil
}

func (a *App) Avatar(ctx context.Context, path string) error {
	u := a.session.User()
	if u == nil {
		return common.ErrUnauthenticated
	}
	if err := a.requireStorage(); err != nil {
		return err
	}

	up, f, err := openUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := a.storage.UploadUserAvatar(ctx, up, u.ID)
	if err != nil {
		return err
	}
	a.println("Avatar:", url)
	return nil
}
