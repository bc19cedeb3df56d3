package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioNotifier sends WhatsApp messages through the Twilio REST API.
// In dry-run mode every message goes to the operator phone instead of
// the customer; the mode is fixed at construction so a run cannot flip
// between test and live destinations.
type TwilioNotifier struct {
	client        *twilio.RestClient
	from          string
	operatorPhone string
	dryRun        bool
}

// NewTwilio builds a notifier with the given account credentials.
func NewTwilio(accountSID, authToken, from, operatorPhone string, dryRun bool) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{
		client:        client,
		from:          from,
		operatorPhone: operatorPhone,
		dryRun:        dryRun,
	}
}

// DryRun reports whether messages are being redirected to the operator.
func (t *TwilioNotifier) DryRun() bool {
	return t.dryRun
}

// destination picks the number a notification goes to.
func (t *TwilioNotifier) destination(customerPhone string) string {
	if t.dryRun {
		return t.operatorPhone
	}
	return customerPhone
}

// Notify sends the notification and returns the Twilio message SID.
// The Twilio SDK manages its own request lifecycle; ctx is accepted for
// interface symmetry.
func (t *TwilioNotifier) Notify(_ context.Context, n Notification) (string, error) {
	to := t.destination(n.Phone)

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(Body(n))

	msg, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("notify: send to %s: %w", to, err)
	}
	if msg.Sid == nil {
		return "", fmt.Errorf("notify: send to %s: no message sid returned", to)
	}
	return *msg.Sid, nil
}
