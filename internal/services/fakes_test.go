package services

// In-memory repository fakes with the same guarded-update semantics as the
// real gorm implementations, so race arbitration can be exercised without a
// database.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/config"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/models"
	"relayer-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
)

func addr(s string) common.Address { return common.HexToAddress(s) }

const testSealKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var errNATSDown = errors.New("nats connection down")

func setTestConfig() {
	config.AppConfig = &config.Config{
		Auction: config.AuctionConfig{
			CommitWindowSeconds:  300,
			SweepIntervalSeconds: 30,
			DefaultSafetyFactor:  "0.95",
			MaxOrderDuration:     3600,
		},
		Tokens: config.TokenDecimalConfig{DefaultDecimals: 18},
	}
}

// ---- orders ----

type fakeOrderRepo struct {
	mu            sync.Mutex
	orders        map[string]*models.Order
	transitionErr error // when set, TransitionState fails with it
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("duplicate order %s", order.ID)
	}
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *fakeOrderRepo) TransitionState(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return r.transitionErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != from {
		return repository.ErrStateConflict
	}
	order.Status = to
	return nil
}

func (r *fakeOrderRepo) FindByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, order := range r.orders {
		for _, status := range statuses {
			if order.Status == status {
				clone := *order
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) FindActiveBefore(ctx context.Context, deadline time.Time, statuses ...models.OrderStatus) ([]*models.Order, error) {
	matching, err := r.FindByStatus(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	var out []*models.Order
	for _, order := range matching {
		if order.FillDeadline < deadline.Unix() {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, page, pageSize int) ([]*models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, order := range r.orders {
		clone := *order
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

// ---- commitments ----

type fakeCommitmentRepo struct {
	mu          sync.Mutex
	commitments map[string]*models.Commitment
}

func newFakeCommitmentRepo() *fakeCommitmentRepo {
	return &fakeCommitmentRepo{commitments: make(map[string]*models.Commitment)}
}

func (r *fakeCommitmentRepo) Create(ctx context.Context, commitment *models.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *commitment
	r.commitments[commitment.ID] = &clone
	return nil
}

func (r *fakeCommitmentRepo) GetActiveByOrder(ctx context.Context, orderID string) (*models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commitments {
		if c.OrderID == orderID && c.Status == models.CommitmentStatusActive {
			clone := *c
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeCommitmentRepo) GetLatestByOrder(ctx context.Context, orderID string) (*models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Commitment
	for _, c := range r.commitments {
		if c.OrderID == orderID && (latest == nil || !c.CommittedAt.Before(latest.CommittedAt)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *fakeCommitmentRepo) FindExpiredActive(ctx context.Context, now time.Time) ([]*models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Commitment
	for _, c := range r.commitments {
		if c.Status == models.CommitmentStatusActive && c.Deadline.Before(now) {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeCommitmentRepo) UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commitments[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Status = status
	return nil
}

func (r *fakeCommitmentRepo) FindByResolver(ctx context.Context, resolver string) ([]*models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Commitment
	for _, c := range r.commitments {
		if c.Resolver == resolver {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ---- escrows ----

type fakeEscrowRepo struct {
	mu      sync.Mutex
	records map[string]*models.EscrowRecord // orderID|side
}

func newFakeEscrowRepo() *fakeEscrowRepo {
	return &fakeEscrowRepo{records: make(map[string]*models.EscrowRecord)}
}

func escrowKey(orderID string, side models.EscrowSide) string {
	return orderID + "|" + string(side)
}

func (r *fakeEscrowRepo) Upsert(ctx context.Context, record *models.EscrowRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[escrowKey(record.OrderID, record.Side)] = &clone
	return nil
}

func (r *fakeEscrowRepo) GetByOrderAndSide(ctx context.Context, orderID string, side models.EscrowSide) (*models.EscrowRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[escrowKey(orderID, side)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *fakeEscrowRepo) FindByOrder(ctx context.Context, orderID string) ([]*models.EscrowRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.EscrowRecord
	for _, record := range r.records {
		if record.OrderID == orderID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeEscrowRepo) MarkFunded(ctx context.Context, orderID string, side models.EscrowSide, observedBalance string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[escrowKey(orderID, side)]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	record.Funded = true
	record.ObservedBalance = observedBalance
	record.FundedAt = &now
	return nil
}

// ---- secrets ----

type fakeSecretRepo struct {
	mu      sync.Mutex
	records map[string]*models.SecretRecord
}

func newFakeSecretRepo() *fakeSecretRepo {
	return &fakeSecretRepo{records: make(map[string]*models.SecretRecord)}
}

func (r *fakeSecretRepo) Create(ctx context.Context, record *models.SecretRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[record.OrderID] = &clone
	return nil
}

func (r *fakeSecretRepo) GetByOrder(ctx context.Context, orderID string) (*models.SecretRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *fakeSecretRepo) MarkRevealed(ctx context.Context, orderID, revealTxHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if record.Revealed {
		return repository.ErrStateConflict
	}
	now := time.Now()
	record.Revealed = true
	record.RevealTxHash = revealTxHash
	record.RevealedAt = &now
	return nil
}

func (r *fakeSecretRepo) SetRevealTxHash(ctx context.Context, orderID, revealTxHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[orderID]
	if !ok || !record.Revealed {
		return repository.ErrNotFound
	}
	record.RevealTxHash = revealTxHash
	return nil
}

// ---- penalties ----

type fakePenaltyRepo struct {
	mu      sync.Mutex
	records map[string]*models.PenaltyRecord
}

func newFakePenaltyRepo() *fakePenaltyRepo {
	return &fakePenaltyRepo{records: make(map[string]*models.PenaltyRecord)}
}

func (r *fakePenaltyRepo) Create(ctx context.Context, record *models.PenaltyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *fakePenaltyRepo) GetPendingByOrder(ctx context.Context, orderID string) (*models.PenaltyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.OrderID == orderID && record.Status == models.PenaltyStatusPending {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePenaltyRepo) SetRescuer(ctx context.Context, id, rescuer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	record.Rescuer = rescuer
	return nil
}

func (r *fakePenaltyRepo) MarkClaimed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	record.Status = models.PenaltyStatusClaimed
	return nil
}

func (r *fakePenaltyRepo) List(ctx context.Context, page, pageSize int) ([]*models.PenaltyRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PenaltyRecord
	for _, record := range r.records {
		clone := *record
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

// ---- broker ----

type fakeBroker struct {
	mu        sync.Mutex
	published []*dto.OrderAnnouncement
	ch        chan *dto.OrderAnnouncement
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{ch: make(chan *dto.OrderAnnouncement, 16)}
}

func (b *fakeBroker) PublishNewOrder(announcement *dto.OrderAnnouncement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	clone := *announcement
	b.published = append(b.published, &clone)
	select {
	case b.ch <- &clone:
	default:
	}
	return nil
}

func (b *fakeBroker) Close() {}

func (b *fakeBroker) waitForAnnouncement(timeout time.Duration) *dto.OrderAnnouncement {
	select {
	case announcement := <-b.ch:
		return announcement
	case <-time.After(timeout):
		return nil
	}
}

// ---- chain registry ----

func newTestRegistry(chainIDs ...int) (*chain.Registry, map[int]*chain.MockAdapter) {
	registry := chain.NewRegistry()
	mocks := make(map[int]*chain.MockAdapter, len(chainIDs))
	for _, id := range chainIDs {
		mock := chain.NewMockAdapter(id)
		registry.Register(mock)
		mocks[id] = mock
	}
	return registry, mocks
}
