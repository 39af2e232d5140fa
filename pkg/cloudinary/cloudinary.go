package cloudinary

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores media blobs in Cloudinary and hands back durable URLs.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger

	mu     sync.Mutex
	signed map[string]signedEntry
}

type signedEntry struct {
	url       string
	expiresAt time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		signed: make(map[string]signedEntry),
	}, nil
}

// Upload sends the stream to Cloudinary and returns a secure URL.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	folder := strings.Trim(s.folder, "/")
	publicID := buildPublicID(name)

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// UploadFile opens the local file at path and uploads it under its base name.
func (s *Service) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return s.Upload(ctx, filepath.Base(path), file)
}

// SignedURL returns a signed delivery URL for the blob, regenerating the
// signature only after ttl elapses so repeated reads reuse the cached value.
func (s *Service) SignedURL(publicID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	s.mu.Lock()
	if entry, ok := s.signed[publicID]; ok && time.Now().Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.url, nil
	}
	s.mu.Unlock()

	asset, err := s.client.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("build asset for %s: %w", publicID, err)
	}
	asset.Config.URL.SignURL = true

	url, err := asset.String()
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", publicID, err)
	}

	s.mu.Lock()
	s.signed[publicID] = signedEntry{url: url, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()

	return url, nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	return fmt.Sprintf("%s-%d", base, time.Now().Unix())
}
