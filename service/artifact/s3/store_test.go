package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/service/artifact"
)

type fakeAPI struct {
	objects      map[string][]byte
	contentTypes map[string]string
	failPut      error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[key] = data
	f.contentTypes[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	store := NewWithClient(api, "bucket", "/reports/")

	location, err := store.Put(ctx, "i-1/summary.html", []byte("<p>x</p>"))
	require.NoError(t, err)
	assert.EqualValues(t, "s3://bucket/reports/i-1/summary.html", location)
	assert.EqualValues(t, "text/html; charset=utf-8", api.contentTypes["bucket/reports/i-1/summary.html"])

	data, err := store.Get(ctx, "/i-1/summary.html")
	require.NoError(t, err)
	assert.EqualValues(t, "<p>x</p>", string(data))

	_, err = store.Get(ctx, "i-1/missing.csv")
	assert.True(t, errors.Is(err, artifact.ErrNotFound))

	api.failPut = errors.New("denied")
	_, err = store.Put(ctx, "i-1/submission.csv", []byte("a,b"))
	assert.Error(t, err)
}

func TestNew_MissingBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}
