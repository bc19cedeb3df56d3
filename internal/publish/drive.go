package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DrivePublisher writes the invoice to a local file, uploads it to a
// Google Drive folder and opens it to anyone with the link. The local
// artifact is kept on disk; uploads are not rolled back on failure since
// re-publishing the same invoice is safe.
type DrivePublisher struct {
	svc      *drive.Service
	folderID string
	localDir string
}

// NewDrivePublisher builds a publisher from service-account credentials.
func NewDrivePublisher(ctx context.Context, credentialsFile, folderID, localDir string) (*DrivePublisher, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("publish: read credentials %s: %w", credentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("publish: parse credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("publish: drive service: %w", err)
	}
	return &DrivePublisher{svc: svc, folderID: folderID, localDir: localDir}, nil
}

// newWithService wires a prebuilt Drive service, for tests.
func newWithService(svc *drive.Service, folderID, localDir string) *DrivePublisher {
	return &DrivePublisher{svc: svc, folderID: folderID, localDir: localDir}
}

// Publish writes factura_<invoiceID>.pdf locally, uploads that file and
// returns its public view link.
func (p *DrivePublisher) Publish(ctx context.Context, invoiceID int64, pdf []byte) (string, error) {
	name := fmt.Sprintf("factura_%d.pdf", invoiceID)
	path := filepath.Join(p.localDir, name)

	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("publish: write %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("publish: reopen %s: %w", path, err)
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if p.folderID != "" {
		meta.Parents = []string{p.folderID}
	}
	created, err := p.svc.Files.Create(meta).
		Media(f).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("publish: upload invoice %d: %w", invoiceID, err)
	}

	_, err = p.svc.Permissions.Create(created.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("publish: set public permission on invoice %d: %w", invoiceID, err)
	}

	if created.WebViewLink == "" {
		return "", fmt.Errorf("publish: invoice %d uploaded but no view link returned", invoiceID)
	}
	return created.WebViewLink, nil
}
