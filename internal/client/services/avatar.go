package services

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/filex"
	"github.com/dmitrijs2005/useraccounts/internal/netx"
)

// MaxAvatarSize limits uploaded pictures.
const MaxAvatarSize = 2 << 20

// AvatarRecorder stores the key of an uploaded picture in the profile.
// *profile.Controller satisfies it.
type AvatarRecorder interface {
	SetAvatar(ctx context.Context, key string) error
}

type AvatarService struct {
	avatars  backend.AvatarStore
	recorder AvatarRecorder
	client   *http.Client
}

func NewAvatarService(avatars backend.AvatarStore, recorder AvatarRecorder, client *http.Client) *AvatarService {
	if client == nil {
		client = http.DefaultClient
	}
	return &AvatarService{avatars: avatars, recorder: recorder, client: client}
}

// Upload sends the image at path to object storage and records it in the
// profile. It returns the object key.
func (s *AvatarService) Upload(ctx context.Context, path string) (string, error) {
	data, contentType, err := filex.ReadImage(path, MaxAvatarSize)
	if err != nil {
		return "", err
	}
	key, url, err := s.avatars.PresignAvatarUpload(ctx)
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	if err := netx.UploadToPresignedURL(ctx, s.client, url, data, contentType); err != nil {
		return "", err
	}
	if err := s.recorder.SetAvatar(ctx, key); err != nil {
		return "", fmt.Errorf("record avatar: %w", err)
	}
	return key, nil
}

// Download saves the picture stored under key to dest.
func (s *AvatarService) Download(ctx context.Context, key, dest string) error {
	url, err := s.avatars.PresignAvatarDownload(ctx, key)
	if err != nil {
		return fmt.Errorf("presign download: %w", err)
	}
	data, err := netx.DownloadFromPresignedURL(ctx, s.client, url)
	if err != nil {
		return err
	}
	if err := filex.EnsureParentDir(dest); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}
