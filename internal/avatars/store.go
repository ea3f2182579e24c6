package avatars

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads profile avatars to object storage. One object per
// patient; a re-upload overwrites the previous avatar.
type Store struct {
	client  s3PutAPI
	bucket  string
	baseURL string
}

// NewStore builds an avatar store. baseURL is the public prefix the
// bucket is served from, without a trailing slash.
func NewStore(client s3PutAPI, bucket, baseURL string) *Store {
	if client == nil {
		panic("avatars: s3 client cannot be nil")
	}
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload stores the avatar bytes and returns the public URL.
func (s *Store) Upload(ctx context.Context, patientID, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("avatars/%s", patientID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("avatars: upload failed: %w", err)
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}
