package shared

import "context"

// ChangeNotifier is told when an owner's financial data changed so derived
// views can be invalidated.
type ChangeNotifier interface {
	Changed(ctx context.Context, ownerID int64)
}

// NopNotifier ignores change notifications.
type NopNotifier struct{}

// Changed implements ChangeNotifier.
func (NopNotifier) Changed(context.Context, int64) {}
