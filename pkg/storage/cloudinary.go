package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// AvatarFolder is where profile photos live in the bucket.
const AvatarFolder = "profile_photos"

var ErrUnsupportedImage = errors.New("unsupported image type")

// PhotoStorage stores user photos and returns their public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, r io.Reader, folder, objectName string) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

type cloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStorage builds the Cloudinary client from explicit credentials.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret string) (PhotoStorage, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are not configured")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld}, nil
}

// IsImage reports whether the file name carries one of the accepted photo extensions.
func IsImage(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func (s *cloudinaryStorage) Upload(ctx context.Context, r io.Reader, folder, objectName string) (string, error) {
	if !IsImage(objectName) {
		return "", ErrUnsupportedImage
	}

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         folder,
		PublicID:       strings.TrimSuffix(objectName, filepath.Ext(objectName)),
		Overwrite:      api.Bool(true),
		Format:         "webp",
		Transformation: "c_fill,g_face,w_400,h_400/q_auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	if resp.SecureURL == "" {
		return "", errors.New("photo upload returned no url")
	}

	return resp.SecureURL, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, fileURL string) error {
	publicID := PublicID(fileURL)
	if publicID == "" {
		return fmt.Errorf("could not extract public ID from URL: %s", fileURL)
	}

	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy returned %q", resp.Result)
	}

	return nil
}

// PublicID turns a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v17/profile_photos/abc.webp into "profile_photos/abc".
func PublicID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	start := -1
	for i, p := range parts {
		if p == "upload" {
			start = i + 1
			break
		}
	}
	if start < 0 || start >= len(parts) {
		return ""
	}

	rest := parts[start:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}

	joined := strings.Join(rest, "/")
	return strings.TrimSuffix(joined, filepath.Ext(joined))
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
