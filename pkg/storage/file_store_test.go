package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFileStoreLifecycle(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	key := ScanImageKey("user-1", "scan-1")
	if key != "scans/user-1/scan-1.jpg" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := fs.Put(ctx, key, strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	u, err := fs.PresignGet(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/scans/user-1/scan-1.jpg") {
		t.Fatalf("unexpected url %q", u)
	}
	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := fs.PresignGet(ctx, key, time.Minute); err == nil {
		t.Fatal("expected missing object error")
	}
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	for _, key := range []string{"", "../x.jpg", "/etc/passwd", `scans\x.jpg`} {
		if err := fs.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("nothing should have been written, found %d entries", len(entries))
	}
}
