package entities

import "time"

// TransactionKind distinguishes point credits from debits
type TransactionKind string

const (
	TransactionEarn   TransactionKind = "EARN"
	TransactionRedeem TransactionKind = "REDEEM"
)

// Transaction is one immutable ledger entry
type Transaction struct {
	ID           string          `json:"id"`
	Kind         TransactionKind `json:"kind"`
	AmountPoints int64           `json:"amountPoints"`
	Description  string          `json:"description"`
	Timestamp    time.Time       `json:"timestamp"`
	BalanceAfter int64           `json:"balanceAfter"`
}

// Signed returns the balance delta of the transaction.
func (t Transaction) Signed() int64 {
	if t.Kind == TransactionRedeem {
		return -t.AmountPoints
	}
	return t.AmountPoints
}

// Wallet is a read-only snapshot of the loyalty wallet
type Wallet struct {
	ID           string        `json:"walletId"`
	PointBalance int64         `json:"pointBalance"`
	Transactions []Transaction `json:"transactions"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// WalletTier is derived from the point balance
type WalletTier string

const (
	TierBronze WalletTier = "Bronze"
	TierSilver WalletTier = "Silver"
	TierGold   WalletTier = "Gold"
)

// TierFor returns the tier for a balance.
func TierFor(balance int64) WalletTier {
	switch {
	case balance >= 1000:
		return TierGold
	case balance >= 500:
		return TierSilver
	}
	return TierBronze
}

// WalletSummary aggregates the transaction log
type WalletSummary struct {
	WalletID         string     `json:"walletId"`
	PointBalance     int64      `json:"pointBalance"`
	TotalEarned      int64      `json:"totalEarned"`
	TotalRedeemed    int64      `json:"totalRedeemed"`
	TransactionCount int        `json:"transactionCount"`
	Tier             WalletTier `json:"tier"`
}
