package provider

import "context"

type IMessengerProvider interface {
	SendTextMessage(ctx context.Context, to, message string) error
	SendImageMessage(ctx context.Context, to, imageURL string) error
}
