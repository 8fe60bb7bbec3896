package domain

import "context"

type Service interface {
	// ResolveRef classifies ref by uuid shape and looks it up against the
	// matching column. The payment gateway only knows its own order id;
	// internal flows address orders by primary key.
	ResolveRef(ctx context.Context, ref string) (*Order, error)

	// ResolveOwned resolves ref and fails closed unless the order belongs
	// to callerID.
	ResolveOwned(ctx context.Context, ref, callerID string) (*Order, error)

	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
