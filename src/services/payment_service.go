package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/models"
)

// PlatformFeePercent is the share of rent retained by the platform before
// paying out the landlord.
const PlatformFeePercent = 5

// Connected-account provisioning poll budget.
const (
	DefaultProvisioningPollInterval = 2 * time.Second
	DefaultProvisioningTimeout      = 60 * time.Second
)

// supportedCurrencies is the allow-list for online checkout. Payments in any
// other currency must be settled through manual instructions.
var supportedCurrencies = map[string]bool{
	"USD": true,
	"CAD": true,
	"EUR": true,
	"GBP": true,
	"AUD": true,
}

// IsOnlineSupported reports whether a currency can go through online checkout.
func IsOnlineSupported(currency string) bool {
	return supportedCurrencies[currency]
}

// FeeSplit is the division of a rent amount between platform and landlord.
type FeeSplit struct {
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	LandlordPayout decimal.Decimal `json:"landlord_payout"`
}

// ComputeFee splits a rent amount into platform fee and landlord payout.
// The fee is rounded half away from zero at 2 decimal places and the payout
// is the exact remainder, so the two always sum back to the input.
func ComputeFee(rentAmount decimal.Decimal) FeeSplit {
	fee := rentAmount.
		Mul(decimal.NewFromInt(PlatformFeePercent)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	return FeeSplit{
		PlatformFee:    fee,
		LandlordPayout: rentAmount.Sub(fee),
	}
}

// PaymentService drives checkout sessions, webhook-driven status transitions,
// and connected-account provisioning.
type PaymentService struct {
	db           *sql.DB
	processor    PaymentProcessor
	log          *zap.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewPaymentService creates a new payment service.
func NewPaymentService(db *sql.DB, processor PaymentProcessor, log *zap.Logger) *PaymentService {
	return &PaymentService{
		db:           db,
		processor:    processor,
		log:          log,
		pollInterval: DefaultProvisioningPollInterval,
		pollTimeout:  DefaultProvisioningTimeout,
	}
}

// SetProvisioningTimeout overrides the connected-account polling budget.
// Non-positive values keep the default.
func (s *PaymentService) SetProvisioningTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.pollTimeout = timeout
	}
}

// CreateMoveInPayment records the move-in payment for a freshly provisioned
// lease: first month's rent plus security deposit, due immediately. Runs on
// the caller's transaction so approval stays all-or-nothing.
func (s *PaymentService) CreateMoveInPayment(ctx context.Context, q querier, lease *models.Lease) (*models.Payment, error) {
	amount := lease.MonthlyRent.Add(lease.SecurityDeposit)

	breakdown := models.MoveInBreakdown{
		RentAmount: lease.MonthlyRent.StringFixed(2),
	}
	if lease.SecurityDeposit.IsPositive() {
		breakdown.SecurityDeposit = lease.SecurityDeposit.StringFixed(2)
	}
	notes, err := models.MarshalJSONB(breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode move-in breakdown: %w", err)
	}

	now := time.Now()
	payment := &models.Payment{
		ID:           uuid.New(),
		LeaseID:      lease.ID,
		TenantUserID: lease.TenantUserID,
		UnitID:       lease.UnitID,
		Type:         models.PaymentTypeMoveIn,
		Amount:       amount,
		Currency:     lease.Currency,
		Status:       models.PaymentStatusPending,
		DueDate:      now,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := insertPayment(ctx, q, payment); err != nil {
		return nil, fmt.Errorf("insert move-in payment: %w", err)
	}
	return payment, nil
}

// CreateRentPayment records a recurring rent payment for an active lease.
func (s *PaymentService) CreateRentPayment(ctx context.Context, leaseID uuid.UUID, dueDate time.Time) (*models.Payment, error) {
	lease, err := getLease(ctx, s.db, leaseID)
	if err != nil {
		return nil, err
	}
	if !lease.IsActive() {
		return nil, fmt.Errorf("lease %s is %s: %w", lease.ID, lease.Status, ErrInvalidState)
	}

	now := time.Now()
	payment := &models.Payment{
		ID:           uuid.New(),
		LeaseID:      lease.ID,
		TenantUserID: lease.TenantUserID,
		UnitID:       lease.UnitID,
		Type:         models.PaymentTypeRent,
		Amount:       lease.MonthlyRent,
		Currency:     lease.Currency,
		Status:       models.PaymentStatusPending,
		DueDate:      dueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := insertPayment(ctx, s.db, payment); err != nil {
		return nil, fmt.Errorf("insert rent payment: %w", err)
	}
	return payment, nil
}

func insertPayment(ctx context.Context, q querier, p *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, lease_id, tenant_user_id, unit_id, type, amount, currency,
			status, due_date, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.ExecContext(ctx, query,
		p.ID, p.LeaseID, p.TenantUserID, p.UnitID, p.Type, p.Amount, p.Currency,
		p.Status, p.DueDate, p.Notes, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// InitiateCheckout opens a checkout session for a pending payment owned by
// the caller. The pending -> processing flip is the serialization point: a
// second concurrent initiation loses the CAS and gets ErrConflict.
func (s *PaymentService) InitiateCheckout(ctx context.Context, paymentID, callerID uuid.UUID) (string, error) {
	payment, err := getPayment(ctx, s.db, paymentID)
	if err != nil {
		return "", err
	}
	if payment.TenantUserID != callerID {
		return "", fmt.Errorf("payment %s is not owned by caller: %w", paymentID, ErrForbidden)
	}
	if !IsOnlineSupported(payment.Currency) {
		return "", fmt.Errorf("currency %s not supported for online checkout: %w", payment.Currency, ErrValidation)
	}

	lease, err := getLease(ctx, s.db, payment.LeaseID)
	if err != nil {
		return "", err
	}
	account, err := s.lookupAccount(ctx, s.db, lease.LandlordID)
	if err != nil {
		return "", err
	}
	if account == nil || !account.TransfersActive {
		return "", fmt.Errorf("landlord payout account not ready: %w", ErrInvalidState)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.PaymentStatusProcessing, time.Now(), paymentID, models.PaymentStatusPending)
	if err != nil {
		return "", err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return "", fmt.Errorf("payment %s is not pending: %w", paymentID, ErrConflict)
	}

	split := ComputeFee(payment.Amount)
	session, err := s.processor.CreateCheckoutSession(ctx, CheckoutSessionParams{
		PaymentID:          payment.ID,
		Amount:             payment.Amount,
		Currency:           payment.Currency,
		Description:        fmt.Sprintf("%s payment for unit %s", payment.Type, payment.UnitID),
		ConnectedAccountID: account.ID,
		ApplicationFee:     split.PlatformFee,
	})
	if err != nil {
		// Session never opened; release the payment for another attempt.
		if _, revertErr := s.db.ExecContext(ctx, `
			UPDATE payments SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
		`, models.PaymentStatusPending, time.Now(), paymentID, models.PaymentStatusProcessing); revertErr != nil {
			s.log.Error("failed to release payment after checkout error",
				zap.String("payment_id", paymentID.String()), zap.Error(revertErr))
		}
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE payments SET session_id = $1, updated_at = $2 WHERE id = $3
	`, session.ID, time.Now(), paymentID); err != nil {
		s.log.Error("failed to record checkout session id",
			zap.String("payment_id", paymentID.String()), zap.Error(err))
	}

	return session.URL, nil
}

// HandlePaymentConfirmed applies a processor confirmation. Idempotent:
// a confirmation for an already-completed payment is a no-op, and paid_at is
// set exactly once by whichever delivery wins the CAS.
func (s *PaymentService) HandlePaymentConfirmed(ctx context.Context, paymentID uuid.UUID) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, paid_at = $2, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`, models.PaymentStatusCompleted, now, paymentID,
		models.PaymentStatusPending, models.PaymentStatusProcessing)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Redelivery or out-of-order event against a terminal payment.
		if _, err := getPayment(ctx, s.db, paymentID); err != nil {
			return err
		}
		s.log.Info("payment confirmation replayed on terminal payment",
			zap.String("payment_id", paymentID.String()))
	}
	return nil
}

// HandlePaymentFailed applies a processor failure event. Same idempotency
// rules as HandlePaymentConfirmed.
func (s *PaymentService) HandlePaymentFailed(ctx context.Context, paymentID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`, models.PaymentStatusFailed, time.Now(), paymentID,
		models.PaymentStatusPending, models.PaymentStatusProcessing)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := getPayment(ctx, s.db, paymentID); err != nil {
			return err
		}
		s.log.Info("payment failure replayed on terminal payment",
			zap.String("payment_id", paymentID.String()))
	}
	return nil
}

// ListLeasePayments returns all payments under a lease, newest first.
func (s *PaymentService) ListLeasePayments(ctx context.Context, leaseID uuid.UUID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE lease_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, leaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		if err := rows.Scan(
			&p.ID, &p.LeaseID, &p.TenantUserID, &p.UnitID, &p.Type, &p.Amount,
			&p.Currency, &p.Status, &p.DueDate, &p.PaidAt, &p.Notes, &p.SessionID,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetLease exposes lease lookup for ownership checks in the transport layer.
func (s *PaymentService) GetLease(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	return getLease(ctx, s.db, leaseID)
}

// lookupAccount returns the landlord's stored connected account, or nil if
// none has been provisioned.
func (s *PaymentService) lookupAccount(ctx context.Context, q querier, landlordID uuid.UUID) (*ConnectedAccount, error) {
	var account ConnectedAccount
	err := q.QueryRowContext(ctx, `
		SELECT account_id, transfers_active FROM landlord_accounts WHERE landlord_id = $1
	`, landlordID).Scan(&account.ID, &account.TransfersActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureConnectedAccount returns the landlord's processor sub-account id,
// creating one if none exists. The account id is persisted the moment it is
// known, before capability activation, so a timed-out call can be resumed
// instead of re-created. If the transfer capability is not yet active the
// call polls until it activates or the budget elapses.
func (s *PaymentService) EnsureConnectedAccount(ctx context.Context, landlordID uuid.UUID, email string) (string, error) {
	account, err := s.lookupAccount(ctx, s.db, landlordID)
	if err != nil {
		return "", err
	}
	if account == nil {
		account, err = s.provisionAccount(ctx, landlordID, email)
		if err != nil {
			return "", err
		}
	}

	if account.TransfersActive {
		return account.ID, nil
	}

	if err := s.pollTransfersActive(ctx, landlordID, account.ID); err != nil {
		return "", err
	}
	return account.ID, nil
}

// provisionAccount creates the landlord's processor sub-account exactly once.
// A per-landlord advisory transaction lock serializes concurrent first-time
// callers: the loser blocks until the winner commits, re-reads the row, and
// never reaches the processor, so no second sub-account can exist.
func (s *PaymentService) provisionAccount(ctx context.Context, landlordID uuid.UUID, email string) (*ConnectedAccount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin provisioning tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(hashtext($1))
	`, landlordID.String()); err != nil {
		return nil, fmt.Errorf("lock landlord provisioning: %w", err)
	}

	account, err := s.lookupAccount(ctx, tx, landlordID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit provisioning: %w", err)
		}
		return account, nil
	}

	created, err := s.processor.CreateConnectedAccount(ctx, landlordID, email)
	if err != nil {
		return nil, fmt.Errorf("create connected account: %w", err)
	}
	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO landlord_accounts (landlord_id, account_id, transfers_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, landlordID, created.ID, created.TransfersActive, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit provisioning: %w", err)
	}
	return &ConnectedAccount{ID: created.ID, TransfersActive: created.TransfersActive}, nil
}

// pollTransfersActive waits for the processor to activate transfers on the
// account, checking at a fixed interval under a hard timeout.
func (s *PaymentService) pollTransfersActive(ctx context.Context, landlordID uuid.UUID, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		remote, err := s.processor.GetConnectedAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("fetch connected account: %w", err)
		}
		if remote.TransfersActive {
			_, err := s.db.ExecContext(ctx, `
				UPDATE landlord_accounts SET transfers_active = TRUE, updated_at = $1
				WHERE landlord_id = $2
			`, time.Now(), landlordID)
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("account %s transfers not active: %w", accountID, ErrProvisioningTimeout)
		case <-ticker.C:
		}
	}
}
