package usecases_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/infrastructure/repositories"
	"kyc-wallet.backend/internal/usecases"
)

func newRewardFixture(t *testing.T) (*sessionFixture, *usecases.RewardUsecase, uuid.UUID) {
	t.Helper()
	f := newSessionFixture(t, entities.FaceSkippable)
	created, err := f.uc.CreateSession(context.Background())
	require.NoError(t, err)
	f.completeOnboarding(t, created.ID)
	return f, usecases.NewRewardUsecase(repositories.NewRewardCatalog(), f.repo), created.ID
}

func TestRewardUsecase_ListWithoutSession(t *testing.T) {
	_, uc, _ := newRewardFixture(t)

	views, err := uc.ListRewards(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.False(t, v.CanRedeem)
		assert.Zero(t, v.PointsNeeded)
	}
}

func TestRewardUsecase_ListCanRedeemFlag(t *testing.T) {
	f, uc, id := newRewardFixture(t)
	ctx := context.Background()
	session, err := f.uc.Session(ctx, id)
	require.NoError(t, err)
	_, err = session.Ledger().Earn(ctx, 200, "Store visit")
	require.NoError(t, err)

	views, err := uc.ListRewards(ctx, &id)
	require.NoError(t, err)
	assert.True(t, views[0].CanRedeem)
	assert.False(t, views[1].CanRedeem)
	assert.Equal(t, int64(200), views[1].PointsNeeded)
	assert.Equal(t, int64(600), views[2].PointsNeeded)

	missing := uuid.New()
	_, err = uc.ListRewards(ctx, &missing)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRewardUsecase_RedeemBeyondBalanceFails(t *testing.T) {
	f, uc, id := newRewardFixture(t)
	ctx := context.Background()
	session, err := f.uc.Session(ctx, id)
	require.NoError(t, err)
	_, err = session.Ledger().Earn(ctx, 200, "Store visit")
	require.NoError(t, err)
	require.Equal(t, int64(300), session.Ledger().Balance())

	redemption, err := uc.Redeem(ctx, id, "2")
	assert.Nil(t, redemption)
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientBalance)
	assert.Equal(t, int64(300), session.Ledger().Balance())
	assert.Len(t, session.Ledger().Transactions(), 2)
}

func TestRewardUsecase_Redeem(t *testing.T) {
	f, uc, id := newRewardFixture(t)
	ctx := context.Background()
	session, err := f.uc.Session(ctx, id)
	require.NoError(t, err)
	_, err = session.Ledger().Earn(ctx, 200, "Store visit")
	require.NoError(t, err)

	redemption, err := uc.Redeem(ctx, id, "1")
	require.NoError(t, err)
	assert.Equal(t, "Free Coffee", redemption.Reward.Title)
	assert.Equal(t, entities.TransactionRedeem, redemption.Transaction.Kind)
	assert.Equal(t, "Free Coffee", redemption.Transaction.Description)
	assert.Equal(t, int64(100), redemption.Balance)

	_, err = uc.Redeem(ctx, id, "404")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = uc.Redeem(ctx, uuid.New(), "1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRewardUsecase_RedeemBeforeWallet(t *testing.T) {
	f := newSessionFixture(t, entities.FaceSkippable)
	ctx := context.Background()
	created, err := f.uc.CreateSession(ctx)
	require.NoError(t, err)
	uc := usecases.NewRewardUsecase(repositories.NewRewardCatalog(), f.repo)

	_, err = uc.Redeem(ctx, created.ID, "1")
	assert.ErrorIs(t, err, domainerrors.ErrWalletNotCreated)
}

func TestRewardUsecase_RedeemByQR(t *testing.T) {
	f, uc, id := newRewardFixture(t)
	ctx := context.Background()
	session, err := f.uc.Session(ctx, id)
	require.NoError(t, err)
	_, err = session.Ledger().Earn(ctx, 500, "Store visit")
	require.NoError(t, err)

	redemption, err := uc.RedeemByQR(ctx, " "+session.WalletID()+"\n", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(100), redemption.Balance)

	_, err = uc.RedeemByQR(ctx, "https://example.com", "1")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = uc.RedeemByQR(ctx, "WLT-000000", "1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRewardUsecase_ConcurrentRedeemReportsOwnBalance(t *testing.T) {
	f, uc, id := newRewardFixture(t)
	ctx := context.Background()
	session, err := f.uc.Session(ctx, id)
	require.NoError(t, err)
	_, err = session.Ledger().Earn(ctx, 800, "Store visit")
	require.NoError(t, err)

	const redeemers = 4
	balances := make(chan int64, redeemers)
	var wg sync.WaitGroup
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			redemption, err := uc.Redeem(ctx, id, "1")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, redemption.Transaction.BalanceAfter, redemption.Balance)
			balances <- redemption.Balance
		}()
	}
	wg.Wait()
	close(balances)

	var got []int64
	for b := range balances {
		got = append(got, b)
	}
	assert.ElementsMatch(t, []int64{700, 500, 300, 100}, got)
	assert.Equal(t, int64(100), session.Ledger().Balance())
}

func TestRewardUsecase_RedeemByQRWithCollidingWalletIDs(t *testing.T) {
	ids := []string{"WLT-111111", "WLT-111111", "WLT-222222"}
	var mu sync.Mutex
	f := newSessionFixture(t, entities.FaceSkippable, func(opts *usecases.SessionOptions) {
		opts.NewWalletID = func() string {
			mu.Lock()
			defer mu.Unlock()
			id := ids[0]
			if len(ids) > 1 {
				ids = ids[1:]
			}
			return id
		}
	})
	ctx := context.Background()

	first, err := f.uc.CreateSession(ctx)
	require.NoError(t, err)
	second, err := f.uc.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WLT-111111", f.completeOnboarding(t, first.ID).WalletID)
	assert.Equal(t, "WLT-222222", f.completeOnboarding(t, second.ID).WalletID)

	uc := usecases.NewRewardUsecase(repositories.NewRewardCatalog(), f.repo)
	secondSession, err := f.uc.Session(ctx, second.ID)
	require.NoError(t, err)
	_, err = secondSession.Ledger().Earn(ctx, 100, "Store visit")
	require.NoError(t, err)

	redemption, err := uc.RedeemByQR(ctx, "WLT-222222", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), redemption.Balance)

	firstSession, err := f.uc.Session(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), firstSession.Ledger().Balance())
}
