package utils

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverPersonalSigner recovers the signer of an EIP-191 personal_sign
// signature over the given message bytes.
func RecoverPersonalSigner(message []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}

	// personal_sign produces V in {27, 28}; go-ethereum expects {0, 1}
	sig = append([]byte{}, sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// VerifyPersonalSignature checks an EIP-191 signature against an expected
// signer address.
func VerifyPersonalSignature(message []byte, signature, expectedSigner string) error {
	signer, err := RecoverPersonalSigner(message, signature)
	if err != nil {
		return err
	}
	if !SameAddress(signer.Hex(), expectedSigner) {
		return fmt.Errorf("signature signer %s does not match %s", signer.Hex(), expectedSigner)
	}
	return nil
}
