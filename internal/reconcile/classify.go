package reconcile

import (
	"net/url"
	"strings"
)

type Convention int

const (
	// ConventionNone: the page load is not a payment return.
	ConventionNone Convention = iota
	// ConventionA: the gateway states the result itself (success, orderId).
	ConventionA
	// ConventionB: the gateway only hands back its transaction id; the result
	// has to be asked for out of band.
	ConventionB
)

func (c Convention) String() string {
	switch c {
	case ConventionA:
		return "A"
	case ConventionB:
		return "B"
	default:
		return "none"
	}
}

const (
	ParamSuccess       = "success"
	ParamOrderID       = "orderId"
	ParamTransactionID = "apptransid"
	ParamTransIDAlias  = "transId"
)

// Classification is what the return page's query string says happened.
type Classification struct {
	Convention    Convention
	Success       bool
	CorrelationID string
	TransactionID string
}

// Classify inspects the query parameters of a checkout-return page load. An explicit
// success flag wins over a transaction id when both are present.
func Classify(query url.Values) Classification {
	if query.Has(ParamSuccess) {
		return Classification{
			Convention:    ConventionA,
			Success:       strings.EqualFold(strings.TrimSpace(query.Get(ParamSuccess)), "true"),
			CorrelationID: strings.TrimSpace(query.Get(ParamOrderID)),
		}
	}

	txn := strings.TrimSpace(query.Get(ParamTransactionID))
	if txn == "" {
		txn = strings.TrimSpace(query.Get(ParamTransIDAlias))
	}
	if txn != "" {
		return Classification{Convention: ConventionB, TransactionID: txn}
	}

	return Classification{Convention: ConventionNone}
}
