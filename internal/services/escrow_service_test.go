package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/models"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type escrowFixture struct {
	service        *EscrowService
	orderRepo      *fakeOrderRepo
	commitmentRepo *fakeCommitmentRepo
	escrowRepo     *fakeEscrowRepo
	mocks          map[int]*chain.MockAdapter

	order      *models.Order
	commitment *models.Commitment
}

func newEscrowFixture(t *testing.T) *escrowFixture {
	t.Helper()
	setTestConfig()

	registry, mocks := newTestRegistry(testSrcChain, testDstChain)
	fixture := &escrowFixture{
		orderRepo:      newFakeOrderRepo(),
		commitmentRepo: newFakeCommitmentRepo(),
		escrowRepo:     newFakeEscrowRepo(),
		mocks:          mocks,
	}
	fixture.service = NewEscrowService(fixture.orderRepo, fixture.commitmentRepo, fixture.escrowRepo, registry)

	ctx := context.Background()
	now := time.Now().Unix()
	fixture.order = &models.Order{
		ID:              "0x" + crypto.Keccak256Hash([]byte("escrow-order")).Hex()[2:],
		Requester:       "0x3333333333333333333333333333333333333333",
		SrcChainID:      testSrcChain,
		DstChainID:      testDstChain,
		SrcToken:        "0x1111111111111111111111111111111111111111",
		DstToken:        "0x2222222222222222222222222222222222222222",
		SrcAmount:       "1000000000000000000",
		ExactInput:      true,
		SecretHash:      crypto.Keccak256Hash([]byte("s")).Hex(),
		InitialPrice:    "2000000",
		FinalPrice:      "1900000",
		AuctionStart:    now - 100,
		AuctionEnd:      now + 500,
		SafetyFactorPPM: 950_000,
		FillDeadline:    now + 900,
		Status:          models.OrderStatusCommitted,
	}
	require.NoError(t, fixture.orderRepo.Create(ctx, fixture.order))

	fixture.commitment = &models.Commitment{
		ID:             "commitment-1",
		OrderID:        fixture.order.ID,
		Resolver:       testResolver(0),
		CommittedPrice: "2000000",
		ExpectedDstAmt: "2000000000000000000",
		SafetyDeposit:  "5000",
		CommittedAt:    time.Now(),
		Deadline:       time.Now().Add(5 * time.Minute),
		Status:         models.CommitmentStatusActive,
	}
	require.NoError(t, fixture.commitmentRepo.Create(ctx, fixture.commitment))

	return fixture
}

// derivedEscrow returns the deterministic escrow address for one side, the
// same derivation the service checks reports against
func (f *escrowFixture) derivedEscrow(t *testing.T, side models.EscrowSide) string {
	t.Helper()
	immutables, _, err := f.service.immutablesFor(f.order, f.commitment, side)
	require.NoError(t, err)

	chainID := f.order.SrcChainID
	if side == models.EscrowSideDestination {
		chainID = f.order.DstChainID
	}
	addr, err := f.mocks[chainID].AddressOf(immutables)
	require.NoError(t, err)
	return addr.Hex()
}

func TestReportEscrowsAdvancesWhenBothRecorded(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()

	// Source side alone keeps the order in committed
	err := fixture.service.ReportEscrows(ctx, &dto.ResolverUpdateRequest{
		OrderID:   fixture.order.ID,
		Resolver:  fixture.commitment.Resolver,
		SrcEscrow: fixture.derivedEscrow(t, models.EscrowSideSource),
	})
	require.NoError(t, err)

	order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCommitted, order.Status)

	// Destination side completes the pair
	err = fixture.service.ReportEscrows(ctx, &dto.ResolverUpdateRequest{
		OrderID:   fixture.order.ID,
		Resolver:  fixture.commitment.Resolver,
		DstEscrow: fixture.derivedEscrow(t, models.EscrowSideDestination),
	})
	require.NoError(t, err)

	order, err = fixture.orderRepo.GetByID(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusEscrowsDeployed, order.Status)

	record, err := fixture.escrowRepo.GetByOrderAndSide(ctx, fixture.order.ID, models.EscrowSideSource)
	require.NoError(t, err)
	require.Equal(t, fixture.order.SrcAmount, record.RequiredAmount)
	require.Equal(t, fixture.commitment.SafetyDeposit, record.SafetyDeposit)
	require.False(t, record.Funded)

	record, err = fixture.escrowRepo.GetByOrderAndSide(ctx, fixture.order.ID, models.EscrowSideDestination)
	require.NoError(t, err)
	// Destination requirement covers the swap amount plus the deposit
	require.Equal(t, "2000000000000005000", record.RequiredAmount)
}

func TestReportEscrowsRejectsMismatchedAddress(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()

	err := fixture.service.ReportEscrows(ctx, &dto.ResolverUpdateRequest{
		OrderID:   fixture.order.ID,
		Resolver:  fixture.commitment.Resolver,
		SrcEscrow: "0x4444444444444444444444444444444444444444",
	})
	require.ErrorIs(t, err, ErrEscrowMismatch)

	_, err = fixture.escrowRepo.GetByOrderAndSide(ctx, fixture.order.ID, models.EscrowSideSource)
	require.Error(t, err, "a mismatched address must not be recorded")
}

func TestReportEscrowsRejectsWrongResolver(t *testing.T) {
	fixture := newEscrowFixture(t)

	err := fixture.service.ReportEscrows(context.Background(), &dto.ResolverUpdateRequest{
		OrderID:   fixture.order.ID,
		Resolver:  testResolver(5),
		SrcEscrow: fixture.derivedEscrow(t, models.EscrowSideSource),
	})
	require.ErrorIs(t, err, ErrNotCommittedResolver)
}

func TestReportEscrowsRequiresAnAddress(t *testing.T) {
	fixture := newEscrowFixture(t)

	err := fixture.service.ReportEscrows(context.Background(), &dto.ResolverUpdateRequest{
		OrderID:  fixture.order.ID,
		Resolver: fixture.commitment.Resolver,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// reportBoth drives the order to escrows_deployed and returns the two
// escrow addresses
func (f *escrowFixture) reportBoth(t *testing.T) (src, dst string) {
	t.Helper()
	src = f.derivedEscrow(t, models.EscrowSideSource)
	dst = f.derivedEscrow(t, models.EscrowSideDestination)
	err := f.service.ReportEscrows(context.Background(), &dto.ResolverUpdateRequest{
		OrderID:   f.order.ID,
		Resolver:  f.commitment.Resolver,
		SrcEscrow: src,
		DstEscrow: dst,
	})
	require.NoError(t, err)
	return src, dst
}

// dstRequirement is the locked destination amount plus the safety deposit
func (f *escrowFixture) dstRequirement() *big.Int {
	dstAmount, _ := new(big.Int).SetString(f.commitment.ExpectedDstAmt, 10)
	deposit, _ := new(big.Int).SetString(f.commitment.SafetyDeposit, 10)
	return dstAmount.Add(dstAmount, deposit)
}

func TestVerifyFundingRejectsUnderfundedEscrow(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()
	src, dst := fixture.reportBoth(t)

	// Source fully funded, destination short by one wei
	srcAmount, _ := new(big.Int).SetString(fixture.order.SrcAmount, 10)
	fixture.mocks[testSrcChain].SetBalance(addr(src), srcAmount)
	fixture.mocks[testDstChain].SetBalance(addr(dst), new(big.Int).Sub(fixture.dstRequirement(), big.NewInt(1)))

	err := fixture.service.verifyFunding(ctx, fixture.order.ID, fixture.commitment.Resolver)
	require.ErrorIs(t, err, ErrEscrowNotFunded)

	order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusEscrowsDeployed, order.Status)
}

func TestVerifyFundingRequiresSafetyDeposit(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()
	src, dst := fixture.reportBoth(t)

	// Destination holds the swap amount but not the resolver's deposit
	srcAmount, _ := new(big.Int).SetString(fixture.order.SrcAmount, 10)
	dstAmount, _ := new(big.Int).SetString(fixture.commitment.ExpectedDstAmt, 10)
	fixture.mocks[testSrcChain].SetBalance(addr(src), srcAmount)
	fixture.mocks[testDstChain].SetBalance(addr(dst), dstAmount)

	err := fixture.service.verifyFunding(ctx, fixture.order.ID, fixture.commitment.Resolver)
	require.ErrorIs(t, err, ErrEscrowNotFunded)

	order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusEscrowsDeployed, order.Status)
}

func TestVerifyFundingAdvancesToFundsLocked(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()
	src, dst := fixture.reportBoth(t)

	srcAmount, _ := new(big.Int).SetString(fixture.order.SrcAmount, 10)
	fixture.mocks[testSrcChain].SetBalance(addr(src), srcAmount)
	fixture.mocks[testDstChain].SetBalance(addr(dst), fixture.dstRequirement())

	err := fixture.service.verifyFunding(ctx, fixture.order.ID, fixture.commitment.Resolver)
	require.NoError(t, err)

	order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFundsLocked, order.Status)

	for _, side := range []models.EscrowSide{models.EscrowSideSource, models.EscrowSideDestination} {
		record, err := fixture.escrowRepo.GetByOrderAndSide(ctx, fixture.order.ID, side)
		require.NoError(t, err)
		require.True(t, record.Funded)
		require.Equal(t, record.RequiredAmount, record.ObservedBalance)
		require.NotNil(t, record.FundedAt)
	}
}

func TestConfirmFundingRunsOffRequestPath(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()
	src, dst := fixture.reportBoth(t)
	fixture.service.pollInterval = 10 * time.Millisecond

	srcAmount, _ := new(big.Int).SetString(fixture.order.SrcAmount, 10)
	fixture.mocks[testSrcChain].SetBalance(addr(src), srcAmount)
	fixture.mocks[testDstChain].SetBalance(addr(dst), fixture.dstRequirement())

	// The request returns before the chain has been polled
	err := fixture.service.ConfirmFunding(ctx, &dto.TradeCompleteRequest{
		OrderID:         fixture.order.ID,
		Resolver:        fixture.commitment.Resolver,
		SrcEscrowFunded: true,
		DstEscrowFunded: true,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
		return err == nil && order.Status == models.OrderStatusFundsLocked
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConfirmFundingTriggersReveal(t *testing.T) {
	fixture := newEscrowFixture(t)
	ctx := context.Background()
	src, dst := fixture.reportBoth(t)
	fixture.service.pollInterval = 10 * time.Millisecond

	// Wire the full vault so funding confirmation flows into the reveal
	vault, err := NewSecretVault(testSealKey)
	require.NoError(t, err)
	secret := crypto.Keccak256([]byte("funding-" + t.Name()))
	sealed, err := vault.Seal(secret)
	require.NoError(t, err)
	secretRepo := newFakeSecretRepo()
	require.NoError(t, secretRepo.Create(ctx, &models.SecretRecord{
		OrderID:      fixture.order.ID,
		SecretHash:   crypto.Keccak256Hash(secret).Hex(),
		SealedSecret: sealed,
	}))

	secretService := NewSecretService(
		fixture.orderRepo, fixture.commitmentRepo, fixture.escrowRepo,
		secretRepo, newFakePenaltyRepo(), vault, fixture.service.chains)
	fixture.service.AttachRevealer(secretService)

	srcAmount, _ := new(big.Int).SetString(fixture.order.SrcAmount, 10)
	fixture.mocks[testSrcChain].SetBalance(addr(src), srcAmount)
	fixture.mocks[testDstChain].SetBalance(addr(dst), fixture.dstRequirement())

	err = fixture.service.ConfirmFunding(ctx, &dto.TradeCompleteRequest{
		OrderID:         fixture.order.ID,
		Resolver:        fixture.commitment.Resolver,
		SrcEscrowFunded: true,
		DstEscrowFunded: true,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		order, err := fixture.orderRepo.GetByID(ctx, fixture.order.ID)
		return err == nil && order.Status == models.OrderStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	record, err := secretRepo.GetByOrder(ctx, fixture.order.ID)
	require.NoError(t, err)
	require.True(t, record.Revealed)
	require.True(t, fixture.mocks[testDstChain].Withdrawn(addr(dst)))
}

func TestConfirmFundingRequiresBothDeclared(t *testing.T) {
	fixture := newEscrowFixture(t)
	fixture.reportBoth(t)

	err := fixture.service.ConfirmFunding(context.Background(), &dto.TradeCompleteRequest{
		OrderID:         fixture.order.ID,
		Resolver:        fixture.commitment.Resolver,
		SrcEscrowFunded: true,
		DstEscrowFunded: false,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
