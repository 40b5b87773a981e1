package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MockAdapter is an in-memory adapter used by tests. Balances are keyed by
// escrow address and set with SetBalance.
type MockAdapter struct {
	mu        sync.Mutex
	chainID   int
	balances  map[common.Address]*big.Int
	withdrawn map[common.Address]bool
	cancelled map[common.Address]bool

	// WithdrawErr, when set, is returned by Withdraw
	WithdrawErr error
}

func NewMockAdapter(chainID int) *MockAdapter {
	return &MockAdapter{
		chainID:   chainID,
		balances:  make(map[common.Address]*big.Int),
		withdrawn: make(map[common.Address]bool),
		cancelled: make(map[common.Address]bool),
	}
}

func (m *MockAdapter) ChainID() int { return m.chainID }

func (m *MockAdapter) AddressOf(immutables *EscrowImmutables) (common.Address, error) {
	// Deterministic pseudo-address from the immutables salt
	salt := immutables.Salt()
	return common.BytesToAddress(crypto.Keccak256(salt[:])[12:]), nil
}

func (m *MockAdapter) CreateEscrow(ctx context.Context, immutables *EscrowImmutables) (common.Address, string, error) {
	addr, err := m.AddressOf(immutables)
	if err != nil {
		return common.Address{}, "", err
	}
	return addr, "0xmocktx", nil
}

func (m *MockAdapter) BalanceOf(ctx context.Context, escrow, token common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[escrow]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *MockAdapter) Withdraw(ctx context.Context, escrow common.Address, secret []byte, immutables *EscrowImmutables) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WithdrawErr != nil {
		return "", m.WithdrawErr
	}
	if m.withdrawn[escrow] {
		return "", fmt.Errorf("escrow %s already withdrawn", escrow.Hex())
	}
	m.withdrawn[escrow] = true
	return "0xwithdraw", nil
}

func (m *MockAdapter) Cancel(ctx context.Context, escrow common.Address, immutables *EscrowImmutables) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[escrow] = true
	return "0xcancel", nil
}

// SetBalance seeds the balance reported for an escrow address
func (m *MockAdapter) SetBalance(escrow common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[escrow] = new(big.Int).Set(amount)
}

// Withdrawn reports whether Withdraw was called for the escrow
func (m *MockAdapter) Withdrawn(escrow common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withdrawn[escrow]
}
