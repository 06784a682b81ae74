package ledger

import (
	"fmt"

	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyGenerator creates fresh secp256k1 recipient identities. Every EVM chain
// shares the address scheme, so the chain label is not consulted.
type KeyGenerator struct{}

func (KeyGenerator) Generate(_ string) (ports.KeyPair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return ports.KeyPair{}, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return ports.KeyPair{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Secret:  hexutil.Encode(crypto.FromECDSA(key)),
	}, nil
}

var _ ports.KeyGenerator = KeyGenerator{}
