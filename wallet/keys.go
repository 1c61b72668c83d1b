package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoKey is returned when neither a keyfile nor a raw key is configured.
var ErrNoKey = errors.New("wallet: no key configured")

// KeyConfig selects where the signing key comes from. Keyfile wins over Key.
type KeyConfig struct {
	Keyfile  string `toml:",omitempty"` // encrypted JSON keystore file
	Password string `toml:"-"`
	Key      string `toml:",omitempty"` // hex encoded raw private key
}

// LoadKey returns the private key described by cfg.
func LoadKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.Keyfile != "":
		blob, err := os.ReadFile(cfg.Keyfile)
		if err != nil {
			return nil, fmt.Errorf("wallet: read keyfile: %w", err)
		}
		key, err := keystore.DecryptKey(blob, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("wallet: decrypt keyfile: %w", err)
		}
		return key.PrivateKey, nil
	case cfg.Key != "":
		return crypto.HexToECDSA(strings.TrimPrefix(cfg.Key, "0x"))
	}
	return nil, ErrNoKey
}

// Transactor builds signing options for key on chainID.
func Transactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}
