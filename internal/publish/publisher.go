// Package publish turns invoice PDFs into durable public links.
package publish

import "context"

// Publisher persists an invoice document and returns a public URL for it.
type Publisher interface {
	Publish(ctx context.Context, invoiceID int64, pdf []byte) (string, error)
}
