package store

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-checkout/internal/domain"
)

const keyPrefix = "pending_order:"

// PendingOrderStore holds at most one staged OrderDraft per storefront session
// while the customer is away on a payment page.
type PendingOrderStore interface {
	// Stage overwrites whatever draft the session had staged.
	Stage(ctx context.Context, sessionID string, draft *domain.OrderDraft) error
	// Read returns nil, nil when nothing usable is staged. Corrupt data counts as nothing.
	Read(ctx context.Context, sessionID string) (*domain.OrderDraft, error)
	// Clear is a no-op on an empty slot.
	Clear(ctx context.Context, sessionID string) error
	// Take reads and clears the slot in one step.
	Take(ctx context.Context, sessionID string) (*domain.OrderDraft, error)
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func encode(draft *domain.OrderDraft) ([]byte, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order draft: %w", err)
	}
	data, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshal order draft: %w", err)
	}
	return data, nil
}

// decode never fails: data that does not parse into a valid draft is reported as no draft.
func decode(data []byte) *domain.OrderDraft {
	if len(data) == 0 {
		return nil
	}
	var draft domain.OrderDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil
	}
	if err := draft.Validate(); err != nil {
		return nil
	}
	return &draft
}
