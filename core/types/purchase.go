package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrInvalidSignature is returned when a purchase carries no signature or one
// that does not recover to its sender.
var ErrInvalidSignature = errors.New("purchase: invalid signature")

// Purchase is a buyer's signed payment to a sale. The signature covers the
// sale address and the account nonce so it cannot be replayed against another
// sale or submitted twice.
type Purchase struct {
	Sale        [20]byte `json:"sale"`
	From        [20]byte `json:"from"`
	Beneficiary [20]byte `json:"beneficiary"`
	Value       *big.Int `json:"value"`
	Nonce       uint64   `json:"nonce"`
	Signature   []byte   `json:"signature"`
}

// Hash returns the keccak256 digest of the signed fields.
func (p *Purchase) Hash() ([]byte, error) {
	value := p.Value
	if value == nil {
		value = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(struct {
		Sale        common.Address
		From        common.Address
		Beneficiary common.Address
		Value       *big.Int
		Nonce       uint64
	}{common.Address(p.Sale), common.Address(p.From), common.Address(p.Beneficiary), value, p.Nonce})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign fills in the signature using the buyer's key.
func (p *Purchase) Sign(key *ecdsa.PrivateKey) error {
	hash, err := p.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

// Signer recovers the address that produced the signature.
func (p *Purchase) Signer() ([20]byte, error) {
	if len(p.Signature) != crypto.SignatureLength {
		return [20]byte{}, ErrInvalidSignature
	}
	hash, err := p.Hash()
	if err != nil {
		return [20]byte{}, err
	}
	pub, err := crypto.SigToPub(hash, p.Signature)
	if err != nil {
		return [20]byte{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that the signature was produced by From.
func (p *Purchase) Verify() error {
	signer, err := p.Signer()
	if err != nil {
		return err
	}
	if signer != p.From {
		return ErrInvalidSignature
	}
	return nil
}
