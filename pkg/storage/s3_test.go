package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// fakeS3 keeps objects in a map, keyed by "bucket/key".
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

type s3NotFound struct{}

func (s3NotFound) Error() string                 { return "NotFound" }
func (s3NotFound) ErrorCode() string             { return "NotFound" }
func (s3NotFound) ErrorMessage() string          { return "not found" }
func (s3NotFound) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func (f *fakeS3) GetObject(_ context.Context, p *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*p.Bucket+"/"+*p.Key]
	if !ok {
		return nil, s3NotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, p *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(p.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*p.Bucket+"/"+*p.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, p *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *p.Bucket+"/"+*p.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, p *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*p.Bucket+"/"+*p.Key]; !ok {
		return nil, s3NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Roundtrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3(fake, "voicegate", "backups")

	w, err := store.Write(ctx, "prints.msgpack")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Prefix applied to the object key.
	if _, ok := fake.objects["voicegate/backups/prints.msgpack"]; !ok {
		t.Fatalf("object not stored under prefixed key; have %v", fake.objects)
	}

	r, err := store.Read(ctx, "prints.msgpack")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, _ := io.ReadAll(r)
	r.Close()
	if string(got) != "payload" {
		t.Fatalf("Read = %q, want %q", got, "payload")
	}

	ok, err := store.Exists(ctx, "prints.msgpack")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	if err := store.Delete(ctx, "prints.msgpack"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = store.Exists(ctx, "prints.msgpack")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v; want false, nil", ok, err)
	}
}

func TestS3ReadMissing(t *testing.T) {
	store := NewS3(newFakeS3(), "voicegate", "")
	_, err := store.Read(context.Background(), "nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read missing = %v, want os.ErrNotExist", err)
	}
}
