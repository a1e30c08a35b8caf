package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/infrastructure/payment"
	"storefront-checkout/internal/logger"
	"storefront-checkout/internal/reconcile"
	"storefront-checkout/internal/service"
	"storefront-checkout/internal/store"
	"storefront-checkout/internal/worker"
)

// orderBook is an in-memory order backend that counts commits per correlation id.
type orderBook struct {
	mu      sync.Mutex
	commits map[string]int
}

func (b *orderBook) CreateOrder(_ context.Context, _ string, draft *domain.OrderDraft) (*domain.CommitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commits[draft.OrderID]++
	return &domain.CommitResult{Success: true, OrderID: "ord-" + uuid.NewString()[:8]}, nil
}

// attempts is an in-memory payment attempt trail for the sweeper.
type attempts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaymentAttempt
}

func (a *attempts) CreateAttempt(_ context.Context, p *domain.PaymentAttempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[p.ID] = p
	return nil
}

func (a *attempts) FindUnconfirmedBefore(_ context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.PaymentAttempt
	for _, p := range a.rows {
		if p.Status == domain.PaymentUnconfirmed && p.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (a *attempts) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.rows[id]; ok && p.Status == domain.PaymentUnconfirmed {
		p.Status = status
	}
	return nil
}

func (a *attempts) count(status domain.PaymentStatus) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, p := range a.rows {
		if p.Status == status {
			n++
		}
	}
	return n
}

func main() {
	sessions := flag.Int("sessions", 20, "number of simulated checkouts")
	reloads := flag.Int("reloads", 3, "times each return page is loaded")
	statusFailures := flag.Int("status-failures", 3, "status queries that fail before the gateway recovers")
	flag.Parse()

	zl, err := logger.New("warn", "development")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	pending := store.NewMemoryStore()
	gateway := payment.NewMockGateway().WithLatency(20 * time.Millisecond)
	gateway.FailStatus(*statusFailures, nil)
	book := &orderBook{commits: make(map[string]int)}
	trail := &attempts{rows: make(map[uuid.UUID]*domain.PaymentAttempt)}

	reconciler := reconcile.NewReconciler(pending, gateway, book, zl).WithRecorder(trail)
	checkout := service.NewCheckoutService(pending, book, map[domain.PaymentMethod]string{
		domain.PaymentPaylink: "https://paylink.example/pay",
		domain.PaymentFastPay: "https://fastpay.example/pay",
	}, "https://shop.example/checkout/return", zl)

	outcomes := make(map[domain.OutcomeKind]int)

	fmt.Printf("--- STARTING SIMULATION (%d CHECKOUTS, %d RELOADS EACH) ---\n", *sessions, *reloads)
	for i := 0; i < *sessions; i++ {
		sessionID := fmt.Sprintf("session-%02d", i+1)
		method := domain.PaymentPaylink
		if i%2 == 1 {
			method = domain.PaymentFastPay
		}

		draft := &domain.OrderDraft{
			Items:         []domain.LineItem{{ProductID: "sku-1", Quantity: 1 + i%3, Price: 12000}},
			ShippingInfo:  domain.ShippingInfo{Name: "Customer " + sessionID, Address: "Simulated St"},
			PaymentMethod: method,
		}
		placed, err := checkout.PlaceOrder(ctx, sessionID, draft)
		if err != nil {
			log.Printf("[%s] checkout failed: %v", sessionID, err)
			continue
		}

		txnID := "txn-" + placed.CorrelationID
		paid, chargeErr := gateway.Charge(ctx, txnID)
		query := returnQuery(method, placed.CorrelationID, txnID, paid)

		fmt.Printf("[%s] %-7s paid=%-5t charge_err=%v\n", sessionID, method, paid, chargeErr)
		for r := 0; r < *reloads; r++ {
			outcome, err := reconciler.Reconcile(ctx, sessionID, query)
			if err != nil {
				fmt.Printf("    load %d -> error: %v\n", r+1, err)
				continue
			}
			if r == 0 {
				outcomes[outcome.Kind]++
			}
			fmt.Printf("    load %d -> %s %s\n", r+1, outcome.Kind, outcome.OrderID)
		}
	}

	duplicates := 0
	for id, n := range book.commits {
		if n > 1 {
			duplicates++
			fmt.Printf("DUPLICATE ORDER for %s (%d commits)\n", id, n)
		}
	}

	fmt.Println("---------------------------------------------------")
	for kind, n := range outcomes {
		fmt.Printf("%-18s %d\n", kind, n)
	}
	fmt.Printf("duplicate orders   %d\n", duplicates)
	fmt.Printf("unconfirmed        %d\n", trail.count(domain.PaymentUnconfirmed))

	sweeper := worker.NewReconciliationWorker(trail, gateway, time.Second, 0, 100, zl)
	resolved, err := sweeper.Process(ctx)
	if err != nil {
		zl.Error("sweep failed", zap.Error(err))
	}
	fmt.Printf("sweeper resolved %d: %d phantom charges, %d unpaid\n",
		resolved, trail.count(domain.PaymentPaidNoOrder), trail.count(domain.PaymentUnpaid))
}

// returnQuery builds the query string each gateway appends to the return URL.
func returnQuery(method domain.PaymentMethod, correlationID, txnID string, paid bool) url.Values {
	q := url.Values{}
	if method == domain.PaymentPaylink {
		q.Set("success", fmt.Sprint(paid))
		q.Set("orderId", correlationID)
		return q
	}
	q.Set("apptransid", txnID)
	return q
}
