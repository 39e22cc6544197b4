package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"brokerdesk/internal/domain/entity"
)

// CloudStorageClient stores message attachments in a GCS bucket. Objects
// live under attachments/{uploader}/ and are never public; clients fetch
// them through time-limited signed URLs.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadAttachment streams one file into the bucket and returns the
// attachment descriptor to embed in a message.
func (c *CloudStorageClient) UploadAttachment(ctx context.Context, uploaderID, filename, contentType string, size int64, file io.Reader) (*entity.Attachment, error) {
	id := uuid.New().String()
	object := fmt.Sprintf("attachments/%s/%s%s", uploaderID, id, path.Ext(filename))

	obj := c.client.Bucket(c.bucketName).Object(object)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	written, err := io.Copy(wc, file)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("failed to copy attachment to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %v", err)
	}
	if size <= 0 {
		size = written
	}

	url, err := c.SignedDownloadURL(object, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &entity.Attachment{
		ID:          id,
		Name:        filename,
		ContentType: contentType,
		URL:         url,
		Size:        size,
	}, nil
}

// SignedDownloadURL returns a time-limited read URL for one stored object.
func (c *CloudStorageClient) SignedDownloadURL(object string, ttl time.Duration) (string, error) {
	url, err := c.client.Bucket(c.bucketName).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL: %v", err)
	}
	return url, nil
}

// DeleteAttachment removes one stored object.
func (c *CloudStorageClient) DeleteAttachment(ctx context.Context, object string) error {
	if err := c.client.Bucket(c.bucketName).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete attachment: %v", err)
	}
	return nil
}
