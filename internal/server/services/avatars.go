package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/google/uuid"
)

// AvatarURLValidity bounds how long a presigned avatar URL stays usable.
const AvatarURLValidity = 15 * time.Minute

// ObjectPresigner is the part of *s3.PresignClient the avatar service uses.
type ObjectPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// seams for tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) ObjectPresigner { return s3.NewPresignClient(c) }
)

// AvatarService hands out presigned URLs for profile pictures kept in an
// S3-compatible bucket. Objects live under avatars/<account id>/.
type AvatarService struct {
	bucket    string
	presigner ObjectPresigner
	newKey    func(accountID string) string
}

func avatarPrefix(accountID string) string {
	return "avatars/" + accountID + "/"
}

func NewAvatarService(ctx context.Context, cfg *sc.Config) (*AvatarService, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("error loading object storage config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newAvatarService(cfg.S3Bucket, newS3PresignClient(client)), nil
}

func newAvatarService(bucket string, p ObjectPresigner) *AvatarService {
	return &AvatarService{
		bucket:    bucket,
		presigner: p,
		newKey:    func(accountID string) string { return avatarPrefix(accountID) + uuid.NewString() },
	}
}

// UploadURL allocates a fresh object key for accountID and presigns a PUT.
func (s *AvatarService) UploadURL(ctx context.Context, accountID string) (string, string, error) {
	if accountID == "" {
		return "", "", ErrUnauthenticated
	}
	key := s.newKey(accountID)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(AvatarURLValidity))
	if err != nil {
		return "", "", fmt.Errorf("error presigning upload: %w", err)
	}
	return key, req.URL, nil
}

// DownloadURL presigns a GET for key, which must belong to accountID.
func (s *AvatarService) DownloadURL(ctx context.Context, accountID, key string) (string, error) {
	if accountID == "" {
		return "", ErrUnauthenticated
	}
	if !strings.HasPrefix(key, avatarPrefix(accountID)) || strings.Contains(key, "..") {
		return "", ErrPermissionDenied
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(AvatarURLValidity))
	if err != nil {
		return "", fmt.Errorf("error presigning download: %w", err)
	}
	return req.URL, nil
}
