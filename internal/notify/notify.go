// Package notify formats and sends shipment notifications to customers.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Notification carries everything the message template needs.
type Notification struct {
	Phone           string // customer number from the order
	DeliveryDate    string // YYYY-MM-DD
	InvoiceURL      string
	TrackingNumbers []string // may be empty; the message still goes out
}

// Notifier dispatches one notification and returns the provider's
// message ID.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (string, error)
}

// Body renders the fixed message template. The wording and field order
// match what customers have been receiving; treat it as frozen copy.
func Body(n Notification) string {
	return fmt.Sprintf(
		"🚚 Comanda expediata :) \n\n"+
			"Detalii colet: \n\n"+
			"Livrare estimata: %s \n"+
			"Plata: ramburs\n\n"+
			"Factura: %s\n\n"+
			"AWB: %s\n\n"+
			"Spor la lucru!",
		n.DeliveryDate,
		n.InvoiceURL,
		strings.Join(n.TrackingNumbers, ", "),
	)
}
