package Iservices

import "context"

// IDeduplicator reports whether a webhook message id was already handled,
// marking it as seen otherwise. Forget unmarks an id whose processing did not
// complete so a redelivery is handled again.
type IDeduplicator interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}
