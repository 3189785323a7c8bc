// Package imagestore archives original receipt images in Google Cloud
// Storage so a purchase can always be traced back to its photo.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archive uploads and fetches receipt images in one GCS bucket. It
// assumes Application Default Credentials are configured.
type Archive struct {
	bucket string
}

// NewArchive creates an archive over the given bucket.
func NewArchive(bucket string) *Archive {
	return &Archive{bucket: bucket}
}

// UploadReceipt uploads a local receipt image and returns its gs://
// URI. Objects are keyed by upload date plus a random id so repeated
// photos of the same receipt never collide.
func (a *Archive) UploadReceipt(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadReceipt: open file %q: %w", filePath, err)
	}
	defer f.Close()

	return a.UploadReceiptStream(ctx, f, filepath.Base(filePath))
}

// UploadReceiptStream uploads receipt image bytes read from r under
// the given original filename and returns the gs:// URI. This is the
// path the HTTP API takes, where the image arrives as a request body
// instead of a local file.
func (a *Archive) UploadReceiptStream(ctx context.Context, r io.Reader, filename string) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("UploadReceiptStream: create storage client: %w", err)
	}
	defer client.Close()

	objectName := fmt.Sprintf("receipts/%s/%s-%s",
		time.Now().Format("2006/01/02"), uuid.NewString(), filepath.Base(filename))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeTypeForFile(filename)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadReceiptStream: copy image to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadReceiptStream: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// FetchReceipt downloads the image bytes for the given gs:// URI.
func FetchReceipt(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchReceipt: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchReceipt: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchReceipt: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchReceipt: reading bytes: %w", err)
	}
	return data, nil
}

// splitGCSURI splits "gs://bucket/path/to/object" into its bucket and
// object parts.
func splitGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the original filename from a gs:// URI.
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// MimeTypeForFile guesses the image MIME type from the file extension.
func mimeTypeForFile(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}

// MimeTypeForURI guesses the image MIME type for a stored object.
func MimeTypeForURI(uri string) string {
	return mimeTypeForFile(FilenameFromURI(uri))
}
