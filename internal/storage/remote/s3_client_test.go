package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/fincache/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket that pages listings two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	lists   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		start = sort.SearchStrings(keys, token)
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestS3Client_Documents(t *testing.T) {
	ctx := context.Background()
	client := newS3Client(newFakeS3(), "fincache")

	require.NoError(t, client.PutDocument(ctx, "users/u1/financial-cache/AAPL.json.zst", []byte("body")))

	body, err := client.GetDocument(ctx, "users/u1/financial-cache/AAPL.json.zst")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), body)

	exists, err := client.DocumentExists(ctx, "users/u1/financial-cache/AAPL.json.zst")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.DeleteDocument(ctx, "users/u1/financial-cache/AAPL.json.zst"))

	_, err = client.GetDocument(ctx, "users/u1/financial-cache/AAPL.json.zst")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	exists, err = client.DocumentExists(ctx, "users/u1/financial-cache/AAPL.json.zst")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3Client_ListDocumentsPaginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	client := newS3Client(fake, "fincache")

	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, client.PutDocument(ctx, "users/u1/financial-cache/"+sym+".json.zst", []byte("x")))
	}
	require.NoError(t, client.PutDocument(ctx, "users/u2/financial-cache/A.json.zst", []byte("x")))

	keys, err := client.ListDocuments(ctx, "users/u1/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
	assert.Equal(t, 3, fake.lists)
}

func TestS3Client_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	client := newS3Client(fake, "fincache")
	fake.setError(errors.New("access denied"))

	_, err := client.GetDocument(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDocumentNotFound)

	assert.Error(t, client.PutDocument(ctx, "k", []byte("x")))
	assert.Error(t, client.DeleteDocument(ctx, "k"))

	_, err = client.DocumentExists(ctx, "k")
	assert.Error(t, err)

	_, err = client.ListDocuments(ctx, "users/")
	assert.Error(t, err)
}

func TestS3Client_BackingRemoteStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newS3Client(newFakeS3(), "fincache"))

	_, err := store.Set(ctx, "user1", "AAPL", record("AAPL"), metaAt(time.Hour, 24*time.Hour))
	require.NoError(t, err)
	_, err = store.Set(ctx, "user1", "MSFT", record("MSFT"), metaAt(time.Hour, 24*time.Hour))
	require.NoError(t, err)

	symbols, err := store.GetCachedSymbols(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	count, err := store.Clear(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
