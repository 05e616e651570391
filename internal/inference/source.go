package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame header of a zstd stream.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Source fetches the raw bytes of a model artifact.
type Source interface {
	// Fetch returns the artifact exactly as stored (possibly compressed).
	Fetch(ctx context.Context) ([]byte, error)
	// Name identifies the artifact in logs.
	Name() string
}

// FileSource reads the artifact from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("inference: read %s: %w", s.Path, err)
	}
	return data, nil
}

func (s FileSource) Name() string { return s.Path }

// S3API is the subset of the S3 client used to fetch artifacts.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the artifact from an S3 object.
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

func (s S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("inference: get %s: %w", s.Name(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read %s: %w", s.Name(), err)
	}
	return data, nil
}

func (s S3Source) Name() string { return "s3://" + s.Bucket + "/" + s.Key }

// NewSource picks a Source for path. Paths of the form s3://bucket/key need
// a non-nil client; anything else is treated as a local file.
func NewSource(path string, client S3API) (Source, error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		if path == "" {
			return nil, fmt.Errorf("inference: empty model path")
		}
		return FileSource{Path: path}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("inference: malformed S3 model path %q", path)
	}
	if client == nil {
		return nil, fmt.Errorf("inference: S3 client required for %q", path)
	}
	return S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

// decoderPool provides reusable zstd decoders.
var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			// Cannot fail with nil input and default options.
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

// decodeArtifact decompresses data when it is a zstd frame and returns it
// unchanged otherwise.
func decodeArtifact(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}
