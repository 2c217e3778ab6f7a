// Package media adapts Cloudinary as the image storage backend. The
// rest of the system only sees opaque public IDs and URLs, so a
// different backend slots in behind the Store interface.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Named transformation sets. Callers pick by name; the raw Cloudinary
// syntax stays inside this package.
var Transformations = map[string]string{
	"avatar":     "w_250,h_250,c_fill",
	"face_thumb": "w_200,h_200,c_thumb,g_face/r_max/f_auto",
	"crop":       "w_400,h_400,c_crop,g_auto",
	"resize":     "w_800,c_scale",
	"grayscale":  "e_grayscale",
	"sepia":      "e_sepia",
}

// TransformAvatar is the set applied to profile pictures on upload.
const TransformAvatar = "avatar"

var ErrUnknownTransformation = errors.New("unknown transformation")

// UploadResult identifies a stored asset.
type UploadResult struct {
	PublicID string
	URL      string
}

// Store is the storage surface the handlers consume.
type Store interface {
	Upload(ctx context.Context, r io.Reader, ownerID uuid.UUID) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
	DerivedURL(publicID, transformation string) (string, error)
}

type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	cld.Config.URL.Secure = true
	if folder == "" {
		folder = "snapfolio"
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, r io.Reader, ownerID uuid.UUID) (*UploadResult, error) {
	publicID := fmt.Sprintf("%s/%s/%s", s.folder, ownerID, uuid.NewString())

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:  publicID,
		Overwrite: api.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	return &UploadResult{PublicID: resp.PublicID, URL: resp.SecureURL}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	return nil
}

// DerivedURL builds the delivery URL for a named transformation set.
// Derivations are URL-only; no new asset is stored.
func (s *CloudinaryStore) DerivedURL(publicID, transformation string) (string, error) {
	raw, ok := Transformations[transformation]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransformation, transformation)
	}

	img, err := s.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("cloudinary asset: %w", err)
	}
	img.Transformation = raw
	url, err := img.String()
	if err != nil {
		return "", fmt.Errorf("cloudinary url: %w", err)
	}
	return url, nil
}
