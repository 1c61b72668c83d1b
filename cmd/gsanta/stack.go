package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/gsanta/cmd/utils"
	"github.com/tos-network/gsanta/confidential/localkms"
	"github.com/tos-network/gsanta/ledger"
	"github.com/tos-network/gsanta/ledger/ethledger"
	"github.com/tos-network/gsanta/ledger/localledger"
	"github.com/tos-network/gsanta/santa"
	"github.com/tos-network/gsanta/santadb/leveldb"
	"github.com/tos-network/gsanta/wallet"
	"github.com/urfave/cli/v2"
)

const (
	databaseCache   = 16
	databaseHandles = 64
)

// stack is a fully wired backend together with the resources it holds.
type stack struct {
	backend *santa.Backend
	session *wallet.Session
	account common.Address
	cfg     gsantaConfig

	closers []func()
}

func (s *stack) Close() {
	s.backend.Stop()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// connect marks the configured account as connected, if there is one.
func (s *stack) connect() {
	if s.account != (common.Address{}) {
		s.session.Connect(s.account)
	}
}

// makeStack opens the stores, dials the ledger and wires the backend.
func makeStack(ctx *cli.Context, rootCtx context.Context) (*stack, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	utils.SetWalletConfig(ctx, &cfg.Wallet)

	s := &stack{session: wallet.NewSession(), cfg: cfg}
	fail := func(err error) (*stack, error) {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
		return nil, err
	}
	key, err := wallet.LoadKey(cfg.Wallet)
	switch {
	case errors.Is(err, wallet.ErrNoKey):
		log.Warn("No wallet configured, only check and version are available")
	case err != nil:
		return nil, err
	default:
		s.account = crypto.PubkeyToAddress(key.PublicKey)
	}

	datadir := utils.MakeDataDir(ctx)
	db, err := leveldb.New(filepath.Join(datadir, "santadb"), databaseCache, databaseHandles, false)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.closers = append(s.closers, func() { db.Close() })

	var kmsKey *ecdsa.PrivateKey
	if cfg.KMS.Key != "" {
		kmsKey, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.KMS.Key, "0x"))
	} else {
		kmsKey, err = localkms.LoadOrCreateKey(db)
	}
	if err != nil {
		return fail(fmt.Errorf("kms key: %w", err))
	}
	kms := localkms.New(db, kmsKey)

	var chain ledger.Ledger
	switch cfg.Ledger.Kind {
	case utils.LedgerEth:
		client, err := ethledger.DialContext(rootCtx, cfg.Ledger.RPC, cfg.Ledger.Contract)
		if err != nil {
			return fail(fmt.Errorf("dial %s: %w", cfg.Ledger.RPC, err))
		}
		s.closers = append(s.closers, client.Close)
		if key != nil {
			chainID, err := client.ChainID(rootCtx)
			if err != nil {
				return fail(err)
			}
			opts, err := wallet.Transactor(key, chainID)
			if err != nil {
				return fail(err)
			}
			if cfg.Ledger.Confirm {
				opts = ethledger.WithConfirmation(opts, confirmTransaction)
			}
			client.SetTransactor(opts)
		}
		chain = client
	default:
		local := localledger.New(db, localledger.Config{
			Contract:     cfg.Ledger.Contract,
			KMS:          kms.Address(),
			ConfirmDelay: cfg.Ledger.ConfirmDelay,
		})
		if cfg.Ledger.Confirm {
			local.SetApproval(approveWrite)
		}
		chain = local
	}
	log.Info("Ledger ready", "kind", cfg.Ledger.Kind, "contract", chain.ContractAddress(), "kms", kms.Address())

	s.backend = santa.New(cfg.Santa, s.session, chain, kms)
	return s, nil
}

func confirmTransaction(method string, tx *types.Transaction) error {
	return confirm(fmt.Sprintf("Sign %s transaction to %s (nonce %d, gas %d)?", method, tx.To().Hex(), tx.Nonce(), tx.Gas()))
}

func approveWrite(ctx context.Context, from common.Address, method, id string) error {
	return confirm(fmt.Sprintf("Sign %s for %s from %s?", method, id, from.Hex()))
}

func confirm(question string) error {
	ok, err := utils.PromptConfirm(question)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTxRejected, err)
	}
	if !ok {
		return ledger.ErrTxRejected
	}
	return nil
}
