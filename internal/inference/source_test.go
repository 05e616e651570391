package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	err     error
	gets    int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestNewSource(t *testing.T) {
	client := &fakeS3{}

	src, err := NewSource("/models/status.json", nil)
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "/models/status.json"}, src)

	src, err = NewSource("s3://railrisk-models/status/v3.json.zst", client)
	require.NoError(t, err)
	s3src, ok := src.(S3Source)
	require.True(t, ok)
	assert.Equal(t, "railrisk-models", s3src.Bucket)
	assert.Equal(t, "status/v3.json.zst", s3src.Key)
	assert.Equal(t, "s3://railrisk-models/status/v3.json.zst", s3src.Name())

	for _, bad := range []string{"", "s3://bucket-only", "s3:///key"} {
		_, err := NewSource(bad, client)
		assert.Error(t, err, bad)
	}

	_, err = NewSource("s3://bucket/key", nil)
	assert.ErrorContains(t, err, "S3 client required")
}

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"x"}`), 0o600))

	data, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"version":"x"}`, string(data))

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestS3Source_Fetch(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"b/k": []byte("payload")}}

	data, err := S3Source{Client: client, Bucket: "b", Key: "k"}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	client.err = errors.New("access denied")
	_, err = S3Source{Client: client, Bucket: "b", Key: "k"}.Fetch(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestDecodeArtifact(t *testing.T) {
	plain := testModelJSON(t)

	out, err := decodeArtifact(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out, "uncompressed input passes through")

	out, err = decodeArtifact(compress(t, plain))
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	corrupt := append(append([]byte{}, zstdMagic...), 0xff, 0xff, 0xff)
	_, err = decodeArtifact(corrupt)
	assert.Error(t, err)
}
