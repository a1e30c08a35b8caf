package reconcile

import "storefront-checkout/internal/domain"

type StatusResult int

const (
	StatusNotQueried StatusResult = iota
	StatusPaid
	StatusUnpaid
	StatusQueryFailed
)

type Action int

const (
	ActionNone Action = iota
	ActionDiscard
	ActionQueryStatus
	ActionCommit
)

func (a Action) String() string {
	switch a {
	case ActionDiscard:
		return "discard"
	case ActionQueryStatus:
		return "query_status"
	case ActionCommit:
		return "commit"
	default:
		return "none"
	}
}

const (
	msgDeclined      = "Payment failed or was cancelled. Your order was not placed."
	msgCancelled     = "Payment was cancelled. Please review your order and try again."
	msgStatusUnknown = "We could not confirm your payment status. Please check your order history or contact support before paying again."
	msgCommitted     = "Your order has been placed."
	msgCommitFailed  = "Your payment went through but we could not create your order. Please contact support."
)

// Decision is what to do next. Outcome is only meaningful for ActionDiscard and
// ActionNone; a commit's outcome depends on the order backend's answer.
type Decision struct {
	Action  Action
	Outcome domain.Outcome
}

// Decide maps a classified return, the staged draft (nil when none) and the
// out-of-band status answer to the next action. It has no side effects.
func Decide(c Classification, draft *domain.OrderDraft, status StatusResult) Decision {
	switch c.Convention {
	case ConventionA:
		if c.Success && draft != nil && c.CorrelationID != "" && draft.OrderID == c.CorrelationID {
			return Decision{Action: ActionCommit}
		}
		return discard(declined(msgDeclined, domain.ViewNone))

	case ConventionB:
		if draft == nil {
			return discard(declined(msgCancelled, domain.ViewCheckout))
		}
		switch status {
		case StatusNotQueried:
			return Decision{Action: ActionQueryStatus}
		case StatusPaid:
			return Decision{Action: ActionCommit}
		case StatusQueryFailed:
			return discard(domain.Outcome{
				Kind:     domain.OutcomeStatusUnknown,
				Notice:   &domain.Notice{Level: domain.NoticeWarning, Message: msgStatusUnknown},
				Redirect: domain.ViewOrderHistory,
			})
		default:
			return discard(declined(msgDeclined, domain.ViewNone))
		}

	default:
		return Decision{Action: ActionNone, Outcome: domain.Outcome{Kind: domain.OutcomeNoOp}}
	}
}

func discard(o domain.Outcome) Decision {
	return Decision{Action: ActionDiscard, Outcome: o}
}

func declined(message string, redirect domain.View) domain.Outcome {
	return domain.Outcome{
		Kind:     domain.OutcomeGatewayDeclined,
		Notice:   &domain.Notice{Level: domain.NoticeError, Message: message},
		Redirect: redirect,
	}
}

// committed and commitFailed finish a commit once the order backend has answered.
func committed(orderID string) domain.Outcome {
	return domain.Outcome{
		Kind:     domain.OutcomeCommitted,
		OrderID:  orderID,
		Notice:   &domain.Notice{Level: domain.NoticeSuccess, Message: msgCommitted},
		Redirect: domain.ViewOrderHistory,
	}
}

func commitFailed(message string) domain.Outcome {
	if message == "" {
		message = msgCommitFailed
	}
	return domain.Outcome{
		Kind:   domain.OutcomeCommitFailed,
		Notice: &domain.Notice{Level: domain.NoticeError, Message: message},
	}
}
