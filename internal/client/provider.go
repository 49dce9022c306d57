// Package client holds the outbound SMS provider adapters.
//
// Every adapter reports an ordinary delivery failure (rejected number,
// gateway error, timeout) as a non-nil error whose text is suitable for
// storing on the message. Adapters never panic on provider responses.
package client

import "context"

type Provider interface {
	Send(ctx context.Context, to, body string) (providerID string, err error)
}
