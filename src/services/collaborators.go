package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutSessionParams describes a checkout session to open with the
// payment processor.
type CheckoutSessionParams struct {
	PaymentID          uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	Description        string
	ConnectedAccountID string
	ApplicationFee     decimal.Decimal
}

// CheckoutSession is the processor's handle for an open checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// ConnectedAccount is a processor sub-account scoped to a landlord.
type ConnectedAccount struct {
	ID              string
	TransfersActive bool
}

// PaymentProcessor is the external payment-processor collaborator. The
// orchestrator is the webhook consumer of record for its events.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	CreateConnectedAccount(ctx context.Context, landlordID uuid.UUID, email string) (*ConnectedAccount, error)
	GetConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error)
}

// Notifier receives fire-and-forget notifications on state changes (search
// index refresh, outbound email). Failures must never roll back the core
// transition, so the interface returns nothing.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]interface{})
}

// IdentityDirectory is the external identity-provider collaborator used to
// grant and revoke the tenant role.
type IdentityDirectory interface {
	GrantTenantRole(ctx context.Context, userID uuid.UUID) error
	RevokeTenantRole(ctx context.Context, userID uuid.UUID) error
}

// LogNotifier is a Notifier that records events to the service log. The real
// search-index and email fan-out live behind the platform's event bus; this
// keeps the call sites honest in environments without one.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event string, payload map[string]interface{}) {
	n.log.Info("notify", zap.String("event", event), zap.Any("payload", payload))
}

// LogIdentityDirectory is an IdentityDirectory that only records role
// changes. Deployments that manage roles inside the identity provider's own
// console run with this; ones with a directory API swap in a real client.
type LogIdentityDirectory struct {
	log *zap.Logger
}

// NewLogIdentityDirectory creates a log-backed identity directory.
func NewLogIdentityDirectory(log *zap.Logger) *LogIdentityDirectory {
	return &LogIdentityDirectory{log: log}
}

// GrantTenantRole implements IdentityDirectory.
func (d *LogIdentityDirectory) GrantTenantRole(_ context.Context, userID uuid.UUID) error {
	d.log.Info("grant tenant role", zap.String("user_id", userID.String()))
	return nil
}

// RevokeTenantRole implements IdentityDirectory.
func (d *LogIdentityDirectory) RevokeTenantRole(_ context.Context, userID uuid.UUID) error {
	d.log.Info("revoke tenant role", zap.String("user_id", userID.String()))
	return nil
}
