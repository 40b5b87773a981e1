package services

import (
	"context"
	"testing"
	"time"

	"relayer-backend/internal/models"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type rescueFixture struct {
	service        *RescueMonitorService
	orderRepo      *fakeOrderRepo
	commitmentRepo *fakeCommitmentRepo
	penaltyRepo    *fakePenaltyRepo
	broker         *fakeBroker
}

func newRescueFixture(t *testing.T) *rescueFixture {
	t.Helper()
	setTestConfig()
	fixture := &rescueFixture{
		orderRepo:      newFakeOrderRepo(),
		commitmentRepo: newFakeCommitmentRepo(),
		penaltyRepo:    newFakePenaltyRepo(),
		broker:         newFakeBroker(),
	}
	fixture.service = NewRescueMonitorService(
		fixture.orderRepo,
		fixture.commitmentRepo,
		fixture.penaltyRepo,
		NewBroadcastService(fixture.broker),
	)
	return fixture
}

func (f *rescueFixture) seedOrder(t *testing.T, id string, status models.OrderStatus, fillDeadline int64) *models.Order {
	t.Helper()
	now := time.Now().Unix()
	order := &models.Order{
		ID:           crypto.Keccak256Hash([]byte(id)).Hex(),
		Requester:    "0x3333333333333333333333333333333333333333",
		SrcChainID:   testSrcChain,
		DstChainID:   testDstChain,
		InitialPrice: "2000000",
		FinalPrice:   "1900000",
		AuctionStart: now - 100,
		AuctionEnd:   now + 500,
		FillDeadline: fillDeadline,
		Status:       status,
	}
	require.NoError(t, f.orderRepo.Create(context.Background(), order))
	return order
}

func (f *rescueFixture) seedCommitment(t *testing.T, orderID string, deadline time.Time) *models.Commitment {
	t.Helper()
	commitment := &models.Commitment{
		ID:            "commitment-" + orderID[:10],
		OrderID:       orderID,
		Resolver:      testResolver(0),
		SafetyDeposit: "5000",
		CommittedAt:   time.Now().Add(-10 * time.Minute),
		Deadline:      deadline,
		Status:        models.CommitmentStatusActive,
	}
	require.NoError(t, f.commitmentRepo.Create(context.Background(), commitment))
	return commitment
}

func TestSweepReopensTimedOutCommitment(t *testing.T) {
	fixture := newRescueFixture(t)
	ctx := context.Background()

	order := fixture.seedOrder(t, "timed-out", models.OrderStatusEscrowsDeployed, time.Now().Unix()+600)
	commitment := fixture.seedCommitment(t, order.ID, time.Now().Add(-time.Minute))

	fixture.service.Sweep()

	updated, err := fixture.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusRescueAvailable, updated.Status)

	_, err = fixture.commitmentRepo.GetActiveByOrder(ctx, order.ID)
	require.Error(t, err, "the expired commitment must no longer be active")

	penalty, err := fixture.penaltyRepo.GetPendingByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, commitment.Resolver, penalty.FailedResolver)
	require.Equal(t, commitment.SafetyDeposit, penalty.DepositAmount)
	require.Empty(t, penalty.Rescuer)

	// The reopened order is re-announced flagged for rescue
	announcement := fixture.broker.waitForAnnouncement(3 * time.Second)
	require.NotNil(t, announcement)
	require.Equal(t, order.ID, announcement.OrderID)
	require.True(t, announcement.Rescue)
}

func TestSweepLeavesLiveCommitmentAlone(t *testing.T) {
	fixture := newRescueFixture(t)
	ctx := context.Background()

	order := fixture.seedOrder(t, "still-working", models.OrderStatusCommitted, time.Now().Unix()+600)
	fixture.seedCommitment(t, order.ID, time.Now().Add(3*time.Minute))

	fixture.service.Sweep()

	updated, err := fixture.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCommitted, updated.Status)

	_, err = fixture.penaltyRepo.GetPendingByOrder(ctx, order.ID)
	require.Error(t, err)
}

func TestSweepSkipsCompletedOrderWithStaleCommitment(t *testing.T) {
	fixture := newRescueFixture(t)
	ctx := context.Background()

	order := fixture.seedOrder(t, "finished", models.OrderStatusCompleted, time.Now().Unix()+600)
	fixture.seedCommitment(t, order.ID, time.Now().Add(-time.Minute))

	fixture.service.Sweep()

	updated, err := fixture.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, updated.Status)

	_, err = fixture.penaltyRepo.GetPendingByOrder(ctx, order.ID)
	require.Error(t, err, "no penalty for an order that already completed")
}

func TestSweepRetriesReopenOnFailure(t *testing.T) {
	fixture := newRescueFixture(t)
	ctx := context.Background()

	order := fixture.seedOrder(t, "flaky-reopen", models.OrderStatusCommitted, time.Now().Unix()+600)
	fixture.seedCommitment(t, order.ID, time.Now().Add(-time.Minute))

	// If the reopen does not land, the commitment must stay active so the
	// next sweep retries instead of stranding the order in committed
	fixture.orderRepo.transitionErr = context.DeadlineExceeded
	fixture.service.Sweep()

	updated, err := fixture.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCommitted, updated.Status)

	_, err = fixture.commitmentRepo.GetActiveByOrder(ctx, order.ID)
	require.NoError(t, err, "the commitment must survive a failed reopen")

	fixture.orderRepo.transitionErr = nil
	fixture.service.Sweep()

	updated, err = fixture.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusRescueAvailable, updated.Status)

	_, err = fixture.commitmentRepo.GetActiveByOrder(ctx, order.ID)
	require.Error(t, err)

	_, err = fixture.penaltyRepo.GetPendingByOrder(ctx, order.ID)
	require.NoError(t, err)
}

func TestSweepFailsOrdersPastDeadline(t *testing.T) {
	fixture := newRescueFixture(t)
	ctx := context.Background()

	stale := fixture.seedOrder(t, "stale-pending", models.OrderStatusPending, time.Now().Unix()-60)
	abandoned := fixture.seedOrder(t, "abandoned-rescue", models.OrderStatusRescueAvailable, time.Now().Unix()-60)
	live := fixture.seedOrder(t, "live-pending", models.OrderStatusPending, time.Now().Unix()+600)
	locked := fixture.seedOrder(t, "locked", models.OrderStatusFundsLocked, time.Now().Unix()-60)

	fixture.service.Sweep()

	for id, want := range map[string]models.OrderStatus{
		stale.ID:     models.OrderStatusFailed,
		abandoned.ID: models.OrderStatusFailed,
		live.ID:      models.OrderStatusPending,
		// funds already locked stay recoverable through the escrow timelocks
		locked.ID: models.OrderStatusFundsLocked,
	} {
		order, err := fixture.orderRepo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, order.Status, id)
	}
}
