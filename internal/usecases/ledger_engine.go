package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/metrics"
	"kyc-wallet.backend/pkg/utils"
)

const (
	WalletIDPrefix      = "WLT-"
	walletIDDigits      = 6
	maxWalletIDAttempts = 16
	TransactionIDPrefix = "T-"
	transactionIDLength = 8
)

// LedgerEngine owns one loyalty wallet and its append-only transaction log.
// Every mutation is serialized by a single mutex.
type LedgerEngine struct {
	mu sync.Mutex

	now           func() time.Time
	newWalletID   func() string
	newTxID       func() string
	reserveWallet func(ctx context.Context, walletID string) error

	wallet  *entities.Wallet
	entries []entities.Transaction // oldest first
	lastAt  time.Time
}

// LedgerOption configures a LedgerEngine
type LedgerOption func(*LedgerEngine)

// WithLedgerClock overrides the transaction timestamp source.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *LedgerEngine) { l.now = now }
}

// WithLedgerIDs overrides the wallet and transaction ID generators.
func WithLedgerIDs(walletID, txID func() string) LedgerOption {
	return func(l *LedgerEngine) {
		if walletID != nil {
			l.newWalletID = walletID
		}
		if txID != nil {
			l.newTxID = txID
		}
	}
}

// WithWalletIDReservation registers a check that claims a generated wallet ID.
// A reservation failing with ErrAlreadyExists makes CreateWallet draw another ID.
func WithWalletIDReservation(reserve func(ctx context.Context, walletID string) error) LedgerOption {
	return func(l *LedgerEngine) {
		if reserve != nil {
			l.reserveWallet = reserve
		}
	}
}

// NewLedgerEngine creates an empty ledger with no wallet
func NewLedgerEngine(opts ...LedgerOption) *LedgerEngine {
	l := &LedgerEngine{
		now:           time.Now,
		newWalletID:   func() string { return utils.RandomDigits(WalletIDPrefix, walletIDDigits) },
		newTxID:       func() string { return strings.ToUpper(utils.PrefixedID(TransactionIDPrefix, transactionIDLength)) },
		reserveWallet: func(context.Context, string) error { return nil },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateWallet creates the wallet on first call and returns the same ID afterwards.
// Generated IDs already reserved elsewhere are skipped.
func (l *LedgerEngine) CreateWallet(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet != nil {
		return l.wallet.ID, nil
	}

	for attempt := 1; attempt <= maxWalletIDAttempts; attempt++ {
		id := l.newWalletID()
		err := l.reserveWallet(ctx, id)
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			logger.Warn(ctx, "Wallet ID taken, drawing another",
				zap.String("wallet_id", id),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			metrics.LedgerOperations.WithLabelValues("create_wallet", "error").Inc()
			return "", fmt.Errorf("reserve wallet id: %w", err)
		}

		l.wallet = &entities.Wallet{
			ID:        id,
			CreatedAt: l.stamp(),
		}
		metrics.LedgerOperations.WithLabelValues("create_wallet", "ok").Inc()
		logger.Info(ctx, "Wallet created", zap.String("wallet_id", id))
		return id, nil
	}

	metrics.LedgerOperations.WithLabelValues("create_wallet", "error").Inc()
	return "", fmt.Errorf("no free wallet id after %d attempts: %w", maxWalletIDAttempts, domainerrors.ErrAlreadyExists)
}

// Earn credits amount points
func (l *LedgerEngine) Earn(ctx context.Context, amount int64, description string) (*entities.Transaction, error) {
	return l.apply(ctx, entities.TransactionEarn, amount, description)
}

// Redeem debits amount points. It fails with ErrInsufficientBalance, leaving
// the wallet untouched, when amount exceeds the balance. The returned
// transaction carries the balance right after the debit.
func (l *LedgerEngine) Redeem(ctx context.Context, amount int64, description string) (*entities.Transaction, error) {
	return l.apply(ctx, entities.TransactionRedeem, amount, description)
}

func (l *LedgerEngine) apply(ctx context.Context, kind entities.TransactionKind, amount int64, description string) (*entities.Transaction, error) {
	label := strings.ToLower(string(kind))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		metrics.LedgerOperations.WithLabelValues(label, "rejected").Inc()
		return nil, domainerrors.ErrWalletNotCreated
	}
	if amount <= 0 {
		metrics.LedgerOperations.WithLabelValues(label, "rejected").Inc()
		return nil, fmt.Errorf("%s %d: %w", label, amount, domainerrors.ErrInvalidAmount)
	}
	if kind == entities.TransactionRedeem && amount > l.wallet.PointBalance {
		metrics.LedgerOperations.WithLabelValues(label, "rejected").Inc()
		logger.Info(ctx, "Redeem rejected",
			zap.String("wallet_id", l.wallet.ID),
			zap.Int64("amount", amount),
			zap.Int64("balance", l.wallet.PointBalance),
		)
		return nil, fmt.Errorf("redeem %d with balance %d: %w", amount, l.wallet.PointBalance, domainerrors.ErrInsufficientBalance)
	}

	tx := entities.Transaction{
		ID:           l.newTxID(),
		Kind:         kind,
		AmountPoints: amount,
		Description:  description,
		Timestamp:    l.stamp(),
	}
	l.wallet.PointBalance += tx.Signed()
	tx.BalanceAfter = l.wallet.PointBalance
	l.entries = append(l.entries, tx)

	metrics.LedgerOperations.WithLabelValues(label, "ok").Inc()
	metrics.LedgerPoints.WithLabelValues(label).Add(float64(amount))
	logger.Info(ctx, "Ledger entry appended",
		zap.String("wallet_id", l.wallet.ID),
		zap.String("tx_id", tx.ID),
		zap.String("kind", string(kind)),
		zap.Int64("amount", amount),
		zap.Int64("balance", l.wallet.PointBalance),
	)
	return &tx, nil
}

// stamp returns a timestamp never earlier than the previous one. Callers hold mu.
func (l *LedgerEngine) stamp() time.Time {
	t := l.now()
	if t.Before(l.lastAt) {
		t = l.lastAt
	}
	l.lastAt = t
	return t
}

// WalletID returns the wallet ID, or "" before CreateWallet.
func (l *LedgerEngine) WalletID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wallet == nil {
		return ""
	}
	return l.wallet.ID
}

// Balance returns the current point balance
func (l *LedgerEngine) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wallet == nil {
		return 0
	}
	return l.wallet.PointBalance
}

// Transactions returns a copy of the log, newest first
func (l *LedgerEngine) Transactions() []entities.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newestFirst()
}

func (l *LedgerEngine) newestFirst() []entities.Transaction {
	out := make([]entities.Transaction, len(l.entries))
	for i, tx := range l.entries {
		out[len(l.entries)-1-i] = tx
	}
	return out
}

// Wallet returns a snapshot of the wallet
func (l *LedgerEngine) Wallet() (*entities.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		return nil, domainerrors.ErrWalletNotCreated
	}
	snapshot := *l.wallet
	snapshot.Transactions = l.newestFirst()
	return &snapshot, nil
}

// Summary aggregates the log into totals and a tier
func (l *LedgerEngine) Summary() (*entities.WalletSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		return nil, domainerrors.ErrWalletNotCreated
	}
	summary := &entities.WalletSummary{
		WalletID:         l.wallet.ID,
		PointBalance:     l.wallet.PointBalance,
		TransactionCount: len(l.entries),
		Tier:             entities.TierFor(l.wallet.PointBalance),
	}
	for _, tx := range l.entries {
		if tx.Kind == entities.TransactionEarn {
			summary.TotalEarned += tx.AmountPoints
		} else {
			summary.TotalRedeemed += tx.AmountPoints
		}
	}
	return summary, nil
}

// Audit replays the log oldest to newest and checks that the running balance
// never goes negative, timestamps never decrease and the result matches the
// stored balance.
func (l *LedgerEngine) Audit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		return nil
	}
	var running int64
	var prev time.Time
	for i, tx := range l.entries {
		if tx.AmountPoints <= 0 {
			return fmt.Errorf("entry %d (%s): non-positive amount %d", i, tx.ID, tx.AmountPoints)
		}
		if tx.Timestamp.Before(prev) {
			return fmt.Errorf("entry %d (%s): timestamp goes backwards", i, tx.ID)
		}
		prev = tx.Timestamp
		running += tx.Signed()
		if running < 0 {
			return fmt.Errorf("entry %d (%s): balance goes negative (%d)", i, tx.ID, running)
		}
		if tx.BalanceAfter != running {
			return fmt.Errorf("entry %d (%s): recorded balance %d, replayed %d", i, tx.ID, tx.BalanceAfter, running)
		}
	}
	if running != l.wallet.PointBalance {
		return fmt.Errorf("replayed balance %d does not match stored %d", running, l.wallet.PointBalance)
	}
	return nil
}
