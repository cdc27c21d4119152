package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/domain/repositories"
	"kyc-wallet.backend/pkg/logger"
)

var walletIDPattern = regexp.MustCompile(`^WLT-\d{6}$`)

// RewardUsecase handles the reward catalog and redemption
type RewardUsecase struct {
	catalog  repositories.RewardCatalog
	sessions repositories.SessionRepository
}

// NewRewardUsecase creates a new reward usecase
func NewRewardUsecase(catalog repositories.RewardCatalog, sessions repositories.SessionRepository) *RewardUsecase {
	return &RewardUsecase{catalog: catalog, sessions: sessions}
}

// ListRewards returns the catalog. With a session, each reward carries the
// advisory canRedeem flag for the session's balance.
func (u *RewardUsecase) ListRewards(ctx context.Context, sessionID *uuid.UUID) ([]entities.RewardView, error) {
	rewards, err := u.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	var balance int64
	if sessionID != nil {
		session, err := u.session(ctx, *sessionID)
		if err != nil {
			return nil, err
		}
		balance = session.Ledger().Balance()
	}

	views := make([]entities.RewardView, 0, len(rewards))
	for _, reward := range rewards {
		view := entities.RewardView{Reward: reward}
		if sessionID != nil {
			view.CanRedeem = balance >= reward.PointCost
			if !view.CanRedeem {
				view.PointsNeeded = reward.PointCost - balance
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Redeem spends the reward's point cost from the session wallet
func (u *RewardUsecase) Redeem(ctx context.Context, sessionID uuid.UUID, rewardID string) (*entities.Redemption, error) {
	session, err := u.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.redeem(logger.WithSession(ctx, sessionID.String()), session, rewardID)
}

// RedeemByQR resolves the wallet from a scanned QR payload and redeems the reward
func (u *RewardUsecase) RedeemByQR(ctx context.Context, payload, rewardID string) (*entities.Redemption, error) {
	walletID := strings.TrimSpace(payload)
	if !walletIDPattern.MatchString(walletID) {
		return nil, fmt.Errorf("qr payload %q is not a wallet id: %w", payload, domainerrors.ErrInvalidInput)
	}

	found, err := u.sessions.GetByWalletID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	session, ok := found.(*KYCSession)
	if !ok {
		return nil, fmt.Errorf("wallet %s has unexpected session type %T", walletID, found)
	}
	if err := session.touch(); err != nil {
		return nil, err
	}
	return u.redeem(logger.WithSession(ctx, session.SessionID().String()), session, rewardID)
}

func (u *RewardUsecase) redeem(ctx context.Context, session *KYCSession, rewardID string) (*entities.Redemption, error) {
	reward, err := u.catalog.GetByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}

	tx, err := session.Ledger().Redeem(ctx, reward.PointCost, reward.Title)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Reward redeemed",
		zap.String("reward_id", reward.ID),
		zap.String("wallet_id", session.WalletID()),
		zap.Int64("balance", tx.BalanceAfter),
	)
	return &entities.Redemption{
		Reward:      *reward,
		Transaction: *tx,
		Balance:     tx.BalanceAfter,
	}, nil
}

func (u *RewardUsecase) session(ctx context.Context, id uuid.UUID) (*KYCSession, error) {
	found, err := u.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	session, ok := found.(*KYCSession)
	if !ok {
		return nil, fmt.Errorf("session %s has unexpected type %T", id, found)
	}
	if err := session.touch(); err != nil {
		return nil, err
	}
	return session, nil
}
