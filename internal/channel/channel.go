// Package channel abstracts the external messaging provider used for
// delivery. The dispatch worker only sees the Adapter interface.
package channel

import "context"

// Adapter sends one text message to one recipient. Implementations must
// return *appErrors.RecipientNotFoundError when the provider reports the
// recipient does not exist, since that drives the invalid-vs-failed lead
// classification.
type Adapter interface {
	SendText(ctx context.Context, tenantID, instanceName, recipient, text string) (externalMessageID string, err error)
}
