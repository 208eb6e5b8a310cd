package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const rawResource = "raw"

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
	client *http.Client
}

// NewCloudinaryStorage creates a Cloudinary-backed FileStorage.
// Credentials come from CLOUDINARY_URL (see Cloudinary Go SDK docs).
// Files are stored as raw assets so the public ID keeps the extension.
func NewCloudinaryStorage(folder string) (FileStorage, error) {
	cld, err := cloudinary.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld, folder: folder, client: http.DefaultClient}, nil
}

func (s *cloudinaryStorage) publicID(name string) string {
	if s.folder == "" {
		return name
	}
	return path.Join(s.folder, name)
}

func (s *cloudinaryStorage) Save(ctx context.Context, r io.Reader, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid file name %q", name)
	}

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:       s.publicID(name),
		ResourceType:   rawResource,
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to cloudinary: %w", name, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary rejected %s: %s", name, resp.Error.Message)
	}
	return nil
}

func (s *cloudinaryStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid file name %q: %w", name, ErrFileNotFound)
	}

	fileURL := fmt.Sprintf("https://res.cloudinary.com/%s/%s/upload/%s",
		s.cld.Config.Cloud.CloudName, rawResource, s.publicID(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from cloudinary: %w", name, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cloudinary returned %d for %s", resp.StatusCode, name)
	}
	return resp.Body, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, name string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.publicID(name),
		ResourceType: rawResource,
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from cloudinary: %w", name, err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}
	return nil
}
