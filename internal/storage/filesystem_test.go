package storage

import (
	"context"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "runs/abc/scene-01.mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "runs/abc/scene-01.mp4" {
		t.Errorf("canonical key = %q", key)
	}

	data, contentType, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("data = %q", data)
	}
	if contentType != "video/mp4" {
		t.Errorf("content type = %q, want video/mp4", contentType)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "tmp/frame.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Remove("tmp/frame.jpg"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove("tmp/frame.jpg"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, _, err := store.Read(context.Background(), "tmp/frame.jpg"); err == nil {
		t.Fatal("Read should fail after Remove")
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "   ", "../escape", "a/../../b"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", key)
		}
	}
	// A leading slash is tolerated and stripped.
	key, err := store.Write(context.Background(), "/ok/file.bin", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "ok/file.bin" {
		t.Errorf("key = %q", key)
	}
}
