package provider

import "context"

// Notification is what the executor hands to a provider: the target user
// and the experience payload, credential passed separately so it never
// lives on a struct that might get logged or serialized.
type Notification struct {
	UserID     int64
	UniverseID string
	AssetID    string
}

// Provider abstracts delivery to the third-party notification API.
// Mocking this interface in tests gives full control over provider
// behaviour without making real HTTP calls.
type Provider interface {
	Send(ctx context.Context, n Notification, apiKey string) error
}
