package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"exfolab/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()

	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver: %s", store.Driver())
	}

	info, err := store.Put(ctx, "exports/run1.csv", strings.NewReader("id,mode\nE1,CV\n"), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/run1.csv" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "exports/run1.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only conflict")
	}

	got, rc, err := store.Get(ctx, "exports/run1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "id,mode\nE1,CV\n" {
		t.Fatalf("unexpected body: %q", data)
	}
	if got.ContentType != "text/csv" {
		t.Fatalf("content type lost: %+v", got)
	}

	head, err := store.Head(ctx, "exports/run1.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != int64(len(data)) {
		t.Fatalf("head size: %+v", head)
	}

	if _, err := store.Put(ctx, "reports/summary.md", strings.NewReader("# summary"), core.PutOptions{ContentType: "text/markdown"}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	infos, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "exports/run1.csv" {
		t.Fatalf("list prefix filter: %+v", infos)
	}

	url, err := store.PresignURL(ctx, "exports/run1.csv", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "exports/run1.csv") {
		t.Fatalf("presigned url missing key: %s", url)
	}
	if _, err := store.PresignURL(ctx, "exports/run1.csv", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("expected unsupported for PUT presign, got %v", err)
	}

	ok, err := store.Delete(ctx, "exports/run1.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "exports/run1.csv"); err == nil {
		t.Fatalf("expected get after delete to fail")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket required error")
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("EXFOLAB_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected env bucket error")
	}
}
