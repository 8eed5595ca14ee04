// Package archive keeps timestamped copies of consumed and replaced roster
// files, either in a local folder or in an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const stampLayout = "20060102_150405"

// Archiver stores a copy of a file. Move additionally removes the source.
type Archiver interface {
	Copy(ctx context.Context, src string) (string, error)
	Move(ctx context.Context, src string) (string, error)
}

// Name returns "<stem>_<YYYYmmdd_HHMMSS><ext>" for src.
func Name(src string, now time.Time) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), now.Format(stampLayout), ext)
}

// Local archives into a folder on disk.
type Local struct {
	dir string
	now func() time.Time
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir, now: time.Now}
}

func (l *Local) Copy(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := l.dest(src)
	if err != nil {
		return "", err
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("archive: copy %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

func (l *Local) Move(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := l.dest(src)
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename fails across filesystems.
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("archive: move %s: %w", filepath.Base(src), err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("archive: remove %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

func (l *Local) dest(src string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create %s: %w", l.dir, err)
	}
	return filepath.Join(l.dir, Name(src, l.now())), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 archives into a bucket under an optional key prefix.
type S3 struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewS3(client S3API, bucket, prefix string, logger *slog.Logger) *S3 {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		now:    time.Now,
	}
}

// Copy uploads src and returns its s3:// URI.
func (a *S3) Copy(ctx context.Context, src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("archive: read %s: %w", filepath.Base(src), err)
	}

	key := path.Join(a.prefix, Name(src, a.now()))
	contentType := contentTypeOf(src)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	a.logger.Info("archived file to S3", "file", filepath.Base(src), "s3_uri", uri, "bytes", len(data))
	return uri, nil
}

var sheetTypes = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func contentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := sheetTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (a *S3) Move(ctx context.Context, src string) (string, error) {
	uri, err := a.Copy(ctx, src)
	if err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("archive: remove %s: %w", filepath.Base(src), err)
	}
	return uri, nil
}
