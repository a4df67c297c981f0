package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectName(t *testing.T) {
	name := NewObjectName("Holiday Photo.JPG")
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Len(t, name, 36+len(".jpg"))
	assert.NotEqual(t, name, NewObjectName("Holiday Photo.JPG"))

	assert.Len(t, NewObjectName("README"), 36)
	assert.NoError(t, checkName(NewObjectName("../../etc/passwd.txt")))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://host/uploads/a.png", URL("http://host/uploads/", "a.png"))
	assert.Equal(t, "http://host/uploads/a.png", URL("http://host/uploads", "a.png"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "a.txt", "text/plain", strings.NewReader("hello")))
	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.Error(t, store.Save(ctx, "a.txt", "text/plain", strings.NewReader("again")), "existing files are not overwritten")

	require.NoError(t, store.Remove(ctx, "a.txt"))
	_, err = os.Stat(filepath.Join(root, "a.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, store.Remove(ctx, "a.txt"))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../x", `a\b`, "dir/file"} {
		assert.ErrorIs(t, store.Save(context.Background(), name, "", strings.NewReader("x")), ErrInvalidName, name)
		assert.ErrorIs(t, store.Remove(context.Background(), name), ErrInvalidName, name)
	}
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart upload not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{}
	store := NewS3Store(client, "accounts", "/uploads/")

	require.NoError(t, store.Save(ctx, "a.png", "image/png", strings.NewReader("img")))
	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "accounts", aws.ToString(put.Bucket))
	assert.Equal(t, "uploads/a.png", aws.ToString(put.Key))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, types.ObjectCannedACLPublicRead, put.ACL)
	assert.Equal(t, "img", client.bodies[0])

	require.NoError(t, store.Remove(ctx, "a.png"))
	assert.Equal(t, []string{"uploads/a.png"}, client.deletes)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{err: errors.New("access denied")}
	store := NewS3Store(client, "accounts", "")

	assert.Error(t, store.Save(ctx, "a.png", "", strings.NewReader("img")))
	err := store.Remove(ctx, "a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete object a.png")

	assert.ErrorIs(t, store.Save(ctx, "../a.png", "", strings.NewReader("img")), ErrInvalidName)
}
