package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"time"

	"relayer-backend/internal/config"
	"relayer-backend/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const escrowABIJSON = `[
	{"type":"function","name":"createEscrow","inputs":[{"name":"salt","type":"bytes32"},{"name":"secretHash","type":"bytes32"},{"name":"user","type":"address"},{"name":"resolver","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"timelock","type":"uint256"}],"outputs":[{"name":"escrow","type":"address"}],"stateMutability":"payable"},
	{"type":"function","name":"withdraw","inputs":[{"name":"secret","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"cancel","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

// EVMAdapter implements Adapter over an EVM JSON-RPC endpoint
type EVMAdapter struct {
	chainID      int
	client       *ethclient.Client
	factory      common.Address
	initCodeHash []byte
	privateKey   *ecdsa.PrivateKey
	from         common.Address
	gasLimit     uint64
	escrowABI    abi.ABI
}

// NewEVMAdapter builds an adapter from a network configuration
func NewEVMAdapter(networkConfig *config.NetworkConfig) (*EVMAdapter, error) {
	if len(networkConfig.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("network %s has no RPC endpoints", networkConfig.Name)
	}

	client, err := ethclient.Dial(networkConfig.RPCEndpoints[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s RPC: %w", networkConfig.Name, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	adapter := &EVMAdapter{
		chainID:      networkConfig.ChainID,
		client:       client,
		factory:      common.HexToAddress(networkConfig.EscrowFactory),
		initCodeHash: common.FromHex(networkConfig.EscrowInitCode),
		gasLimit:     networkConfig.GasLimit,
		escrowABI:    parsedABI,
	}
	if adapter.gasLimit == 0 {
		adapter.gasLimit = 500_000
	}

	if networkConfig.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(networkConfig.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key for network %s: %w", networkConfig.Name, err)
		}
		adapter.privateKey = key
		adapter.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	log.Printf("✅ [Chain] EVM adapter ready for %s (chainId=%d, factory=%s)",
		networkConfig.Name, networkConfig.ChainID, networkConfig.EscrowFactory)

	return adapter, nil
}

// ChainID returns the chain this adapter serves
func (a *EVMAdapter) ChainID() int {
	return a.chainID
}

// AddressOf derives the CREATE2 escrow address from the immutables
func (a *EVMAdapter) AddressOf(immutables *EscrowImmutables) (common.Address, error) {
	if len(a.initCodeHash) != 32 {
		return common.Address{}, fmt.Errorf("escrow init code hash not configured for chain %d", a.chainID)
	}
	salt := immutables.Salt()
	return crypto.CreateAddress2(a.factory, salt, a.initCodeHash), nil
}

// CreateEscrow deploys the escrow through the factory contract
func (a *EVMAdapter) CreateEscrow(ctx context.Context, immutables *EscrowImmutables) (common.Address, string, error) {
	salt := immutables.Salt()
	input, err := a.escrowABI.Pack("createEscrow",
		salt,
		common.HexToHash(immutables.SecretHash),
		immutables.User,
		immutables.Resolver,
		immutables.Token,
		immutables.Amount,
		big.NewInt(immutables.Timelock),
	)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to pack createEscrow: %w", err)
	}

	txHash, err := a.submitTx(ctx, a.factory, input, big.NewInt(0))
	if err != nil {
		return common.Address{}, "", err
	}

	addr, err := a.AddressOf(immutables)
	if err != nil {
		return common.Address{}, "", err
	}
	return addr, txHash, nil
}

// observe records call duration and errors for one adapter method
func (a *EVMAdapter) observe(method string, start time.Time, err error) {
	chainLabel := strconv.Itoa(a.chainID)
	metrics.ChainCallDuration.WithLabelValues(chainLabel, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChainCallErrors.WithLabelValues(chainLabel, method).Inc()
	}
}

// BalanceOf reads the escrow balance of a token (zero address = native)
func (a *EVMAdapter) BalanceOf(ctx context.Context, escrow, token common.Address) (*big.Int, error) {
	start := time.Now()
	balance, err := a.balanceOf(ctx, escrow, token)
	a.observe("balanceOf", start, err)
	return balance, err
}

func (a *EVMAdapter) balanceOf(ctx context.Context, escrow, token common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		return a.client.BalanceAt(ctx, escrow, nil)
	}

	input, err := a.escrowABI.Pack("balanceOf", escrow)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: input}
	out, err := a.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed on chain %d: %w", a.chainID, err)
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(out), nil
}

// Withdraw submits the secret to the escrow contract
func (a *EVMAdapter) Withdraw(ctx context.Context, escrow common.Address, secret []byte, immutables *EscrowImmutables) (string, error) {
	var secret32 [32]byte
	copy(secret32[:], secret)
	input, err := a.escrowABI.Pack("withdraw", secret32)
	if err != nil {
		return "", fmt.Errorf("failed to pack withdraw: %w", err)
	}
	return a.submitTx(ctx, escrow, input, big.NewInt(0))
}

// Cancel triggers the escrow's cancellation path
func (a *EVMAdapter) Cancel(ctx context.Context, escrow common.Address, immutables *EscrowImmutables) (string, error) {
	input, err := a.escrowABI.Pack("cancel")
	if err != nil {
		return "", fmt.Errorf("failed to pack cancel: %w", err)
	}
	return a.submitTx(ctx, escrow, input, big.NewInt(0))
}

// submitTx signs and broadcasts a transaction with the relayer key
func (a *EVMAdapter) submitTx(ctx context.Context, to common.Address, input []byte, value *big.Int) (txHash string, err error) {
	start := time.Now()
	defer func() { a.observe("submitTx", start, err) }()

	if a.privateKey == nil {
		return "", fmt.Errorf("no signing key configured for chain %d", a.chainID)
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, a.gasLimit, gasPrice, input)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(int64(a.chainID))), a.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction on chain %d: %w", a.chainID, err)
	}

	log.Printf("📤 [Chain] Submitted tx %s to %s on chain %d", signedTx.Hash().Hex(), to.Hex(), a.chainID)
	return signedTx.Hash().Hex(), nil
}
