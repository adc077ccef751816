package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/storage"
)

func TestGetUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "askdb/prod", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	reader, err := store.Get(context.Background(), "/events/part-0.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = reader.Close()
	if fake.lastBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "askdb/prod/events/part-0.parquet" {
		t.Fatalf("key = %q", fake.lastKey)
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "../secrets.txt"); err == nil {
		t.Fatal("expected path traversal validation error")
	}
}

func TestStatMapsNotFound(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{statErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}
}

func TestListStripsStorePrefix(t *testing.T) {
	fake := &fakeClient{listed: []storage.ObjectInfo{
		{Key: "askdb/prod/events/a.parquet", Size: 10},
		{Key: "askdb/prod/events/b.parquet", Size: 20},
	}}
	store, err := NewWithClient("bucket-a", "askdb/prod", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	infos, err := store.List(context.Background(), "events/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastKey != "askdb/prod/events/" {
		t.Fatalf("list prefix = %q", fake.lastKey)
	}
	if len(infos) != 2 || infos[0].Key != "events/a.parquet" || infos[1].Key != "events/b.parquet" {
		t.Fatalf("List() = %+v", infos)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
}

type fakeClient struct {
	lastBucket         string
	lastKey            string
	statErr            error
	listed             []storage.ObjectInfo
	bucketExists       bool
	createBucketCalled bool
}

func (f *fakeClient) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.lastBucket = bucket
	f.lastKey = key
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) List(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = prefix
	return f.listed, nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
