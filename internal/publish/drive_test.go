package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// driveStub fakes the two Drive calls Publish makes: the multipart file
// upload and the permission insert.
type driveStub struct {
	t               *testing.T
	uploads         int
	permissions     int
	permissionBody  string
	failPermissions bool
}

func (s *driveStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/permissions"):
			s.permissions++
			body, _ := io.ReadAll(r.Body)
			s.permissionBody = string(body)
			if s.failPermissions {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"perm-1"}`))
		default:
			s.uploads++
			_, _ = w.Write([]byte(`{"id":"file-1","webViewLink":"https://drive.google.com/file/d/file-1/view"}`))
		}
	}
}

func newTestPublisher(t *testing.T, stub *driveStub, dir string) *DrivePublisher {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("drive.NewService: %v", err)
	}
	return newWithService(svc, "folder-abc", dir)
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	stub := &driveStub{t: t}
	p := newTestPublisher(t, stub, dir)

	url, err := p.Publish(context.Background(), 555, []byte("%PDF-1.4 invoice"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if url != "https://drive.google.com/file/d/file-1/view" {
		t.Errorf("url = %q", url)
	}
	if stub.uploads != 1 {
		t.Errorf("uploads = %d, want 1", stub.uploads)
	}
	if stub.permissions != 1 {
		t.Errorf("permission inserts = %d, want 1", stub.permissions)
	}
	if !strings.Contains(stub.permissionBody, `"anyone"`) || !strings.Contains(stub.permissionBody, `"reader"`) {
		t.Errorf("permission body = %s, want anyone/reader", stub.permissionBody)
	}

	// The local artifact stays behind.
	artifact := filepath.Join(dir, "factura_555.pdf")
	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("local artifact missing: %v", err)
	}
	if string(data) != "%PDF-1.4 invoice" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestPublishPermissionFailure(t *testing.T) {
	dir := t.TempDir()
	stub := &driveStub{t: t, failPermissions: true}
	p := newTestPublisher(t, stub, dir)

	_, err := p.Publish(context.Background(), 556, []byte("pdf"))
	if err == nil {
		t.Fatal("expected permission error")
	}

	// Artifact and upload are not rolled back.
	if _, statErr := os.Stat(filepath.Join(dir, "factura_556.pdf")); statErr != nil {
		t.Errorf("artifact should remain after failure: %v", statErr)
	}
	if stub.uploads != 1 {
		t.Errorf("uploads = %d, want 1", stub.uploads)
	}
}

func TestPublishDeterministicNaming(t *testing.T) {
	dir := t.TempDir()
	stub := &driveStub{t: t}
	p := newTestPublisher(t, stub, dir)

	// Re-publishing the same invoice overwrites the same artifact.
	for i := 0; i < 2; i++ {
		if _, err := p.Publish(context.Background(), 777, []byte("pdf")); err != nil {
			t.Fatalf("Publish #%d: %v", i+1, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "factura_777.pdf" {
		t.Errorf("artifacts = %v, want single factura_777.pdf", entries)
	}
}

func TestNewDrivePublisherMissingCredentials(t *testing.T) {
	_, err := NewDrivePublisher(context.Background(),
		filepath.Join(t.TempDir(), "nope.json"), "folder", ".")
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}
