package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakePutter records PutObject calls.
type fakePutter struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func newTestUploader(t *testing.T, putter *fakePutter) *MediaUploader {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token123" {
			t.Errorf("missing bearer token on %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/media-1":
			fmt.Fprintf(w, `{"url":%q,"mime_type":"image/jpeg","id":"media-1"}`, "http://"+r.Host+"/download")
		case "/download":
			w.Write([]byte("jpegbytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := NewMediaUploader(context.Background(),
		WithGraphBase(srv.URL),
		WithToken("token123"),
		WithBucket("media-bucket"),
		WithS3Client(putter),
	)
	if err != nil {
		t.Fatalf("NewMediaUploader: %v", err)
	}
	return u
}

func TestUpload(t *testing.T) {
	putter := &fakePutter{}
	u := newTestUploader(t, putter)

	key, err := u.Upload(context.Background(), "media-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasSuffix(key, ".jpeg") {
		t.Errorf("key = %q, want .jpeg suffix", key)
	}

	if len(putter.inputs) != 1 {
		t.Fatalf("got %d PutObject calls, want 1", len(putter.inputs))
	}
	in := putter.inputs[0]
	if in.Bucket == nil || *in.Bucket != "media-bucket" {
		t.Errorf("bucket = %v", in.Bucket)
	}
	if in.Key == nil || *in.Key != key {
		t.Errorf("key = %v, want %q", in.Key, key)
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "jpegbytes" {
		t.Errorf("stored body = %q", body)
	}
}

func TestUploadUnknownMedia(t *testing.T) {
	u := newTestUploader(t, &fakePutter{})

	if _, err := u.Upload(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown media id")
	}
}

func TestUploadStoreFailure(t *testing.T) {
	u := newTestUploader(t, &fakePutter{err: fmt.Errorf("denied")})

	if _, err := u.Upload(context.Background(), "media-1"); err == nil {
		t.Fatal("expected error when storage fails")
	}
}

func TestNewMediaUploaderRequiresBucket(t *testing.T) {
	if _, err := NewMediaUploader(context.Background(), WithS3Client(&fakePutter{})); err == nil {
		t.Fatal("expected error when bucket is unset")
	}
}
