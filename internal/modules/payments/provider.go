package payments

import "context"

// Gateway is everything a checkout attempt needs from the payment side.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	CreatePaymentMethod(ctx context.Context, req MethodRequest) (string, error)
	AttachPaymentMethod(ctx context.Context, req AttachRequest) (AttachResult, error)
	AttachEWallet(ctx context.Context, req EWalletRequest) (AttachResult, error)
	PollStatus(ctx context.Context, intentID string) (IntentStatus, error)
}

var _ Gateway = (*Client)(nil)
