package domain

type OutcomeKind string

const (
	OutcomeNoOp            OutcomeKind = "noop"
	OutcomeCommitted       OutcomeKind = "committed"
	OutcomeGatewayDeclined OutcomeKind = "gateway_declined"
	OutcomeStatusUnknown   OutcomeKind = "status_unknown"
	OutcomeCommitFailed    OutcomeKind = "commit_failed"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

// View is where the storefront should send the customer after reconciliation.
type View string

const (
	ViewNone         View = ""
	ViewOrderHistory View = "order_history"
	ViewCheckout     View = "checkout"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Outcome is the result of interpreting one return-from-gateway page load.
type Outcome struct {
	Kind     OutcomeKind `json:"outcome"`
	OrderID  string      `json:"order_id,omitempty"`
	Notice   *Notice     `json:"notice,omitempty"`
	Redirect View        `json:"redirect,omitempty"`
}

// Terminal reports whether the outcome consumed the staged draft.
func (o Outcome) Terminal() bool {
	return o.Kind != OutcomeNoOp && o.Kind != ""
}
