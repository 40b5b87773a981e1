// Package chain abstracts per-chain escrow operations behind the Adapter
// interface. The relayer core never talks RPC directly; everything flows
// through an Adapter resolved from the registry by chain id.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EscrowSide identifies which leg of the swap an escrow serves
type EscrowSide string

const (
	SideSource      EscrowSide = "src"
	SideDestination EscrowSide = "dst"
)

// EscrowImmutables the parameters that deterministically identify an
// escrow. Hashing them yields the CREATE2 salt, so the escrow address can
// be derived before deployment and verified against resolver reports.
type EscrowImmutables struct {
	OrderID    string
	SecretHash string
	User       common.Address
	Resolver   common.Address
	Token      common.Address
	Amount     *big.Int
	Timelock   int64
	Side       EscrowSide
}

// Salt returns the CREATE2 salt for these immutables
func (im *EscrowImmutables) Salt() [32]byte {
	var amount []byte
	if im.Amount != nil {
		amount = im.Amount.Bytes()
	}
	h := crypto.Keccak256(
		common.FromHex(im.OrderID),
		common.FromHex(im.SecretHash),
		im.User.Bytes(),
		im.Resolver.Bytes(),
		im.Token.Bytes(),
		common.LeftPadBytes(amount, 32),
		big.NewInt(im.Timelock).FillBytes(make([]byte, 32)),
		[]byte(im.Side),
	)
	var salt [32]byte
	copy(salt[:], h)
	return salt
}

// Adapter per-chain escrow operations. Implementations must be safe for
// concurrent use; all blocking calls take a context.
type Adapter interface {
	// ChainID returns the chain this adapter serves
	ChainID() int

	// AddressOf derives the deterministic escrow address without touching
	// the chain
	AddressOf(immutables *EscrowImmutables) (common.Address, error)

	// CreateEscrow deploys the escrow through the factory and returns its
	// address and the deployment tx hash
	CreateEscrow(ctx context.Context, immutables *EscrowImmutables) (common.Address, string, error)

	// BalanceOf reads the escrow's balance of the given token; the zero
	// address means the native asset
	BalanceOf(ctx context.Context, escrow, token common.Address) (*big.Int, error)

	// Withdraw submits the secret to the escrow, releasing funds to the
	// beneficiary; returns the tx hash
	Withdraw(ctx context.Context, escrow common.Address, secret []byte, immutables *EscrowImmutables) (string, error)

	// Cancel triggers the escrow's timelock cancellation path
	Cancel(ctx context.Context, escrow common.Address, immutables *EscrowImmutables) (string, error)
}
