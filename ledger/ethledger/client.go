// Package ethledger provides a client for the exchange contract over the
// Ethereum JSON-RPC API.
package ethledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/gsanta/ledger"
)

const handleCacheSize = 256

// Backend is the chain access the client needs: contract calls and
// transactions plus receipt lookups for confirmation.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client defines typed wrappers for the exchange contract.
type Client struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	rpc      *rpc.Client

	transactor *bind.TransactOpts
	handles    *lru.Cache // record id -> common.Hash

	log log.Logger
}

// Dial connects a client to the given URL.
func Dial(rawurl string, address common.Address) (*Client, error) {
	return DialContext(context.Background(), rawurl, address)
}

// DialContext connects a client to the given URL and binds it to the contract
// deployed at address.
func DialContext(ctx context.Context, rawurl string, address common.Address) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ethclient.NewClient(c), address)
	if err != nil {
		c.Close()
		return nil, err
	}
	client.rpc = c
	return client, nil
}

// NewClient creates a client that uses the given backend.
func NewClient(backend Backend, address common.Address) (*Client, error) {
	handles, err := lru.New(handleCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		handles:  handles,
		log:      log.New("module", "ethledger", "contract", address),
	}, nil
}

// Close releases the underlying RPC connection, if the client owns one.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// SetTransactor installs the signing account used by WriterFor.
func (c *Client) SetTransactor(opts *bind.TransactOpts) {
	c.transactor = opts
}

// ChainID returns the chain id reported by the backend, used to sign
// transactions for it.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	src, ok := c.backend.(interface {
		ChainID(ctx context.Context) (*big.Int, error)
	})
	if !ok {
		return nil, fmt.Errorf("ethledger: backend does not report a chain id")
	}
	return src.ChainID(ctx)
}

// ContractAddress implements ledger.Reader.
func (c *Client) ContractAddress() common.Address {
	return c.address
}

// ListRecordIDs returns every record id known to the contract.
func (c *Client) ListRecordIDs(ctx context.Context) ([]string, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAllBusinessIds"); err != nil {
		return nil, classify(err)
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

// GetRecord returns the contract's view of one record.
func (c *Client) GetRecord(ctx context.Context, id string) (*ledger.RecordSnapshot, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getBusinessData", id); err != nil {
		return nil, classify(err)
	}
	if len(out) != 8 {
		return nil, fmt.Errorf("ethledger: getBusinessData returned %d values", len(out))
	}
	revealed := *abi.ConvertType(out[7], new(uint32)).(*uint32)
	return &ledger.RecordSnapshot{
		Name:               *abi.ConvertType(out[0], new(string)).(*string),
		Description:        *abi.ConvertType(out[1], new(string)).(*string),
		PublicParticipants: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		PublicBudget:       *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		Timestamp:          *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		Creator:            *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
		IsVerified:         *abi.ConvertType(out[6], new(bool)).(*bool),
		RevealedValue:      new(big.Int).SetUint64(uint64(revealed)),
	}, nil
}

// GetEncryptedHandle returns the handle of the record's encrypted budget.
// Handles never change once written, so they are cached.
func (c *Client) GetEncryptedHandle(ctx context.Context, id string) (common.Hash, error) {
	if cached, ok := c.handles.Get(id); ok {
		return cached.(common.Hash), nil
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getEncryptedValue", id); err != nil {
		return common.Hash{}, classify(err)
	}
	handle := common.Hash(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte))
	if handle != (common.Hash{}) {
		c.handles.Add(id, handle)
	}
	return handle, nil
}

// CheckAvailability calls the contract's liveness probe.
func (c *Client) CheckAvailability(ctx context.Context) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isAvailable"); err != nil {
		return false, classify(err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// WriterFor implements ledger.Signer. Only the installed transactor's
// account can sign.
func (c *Client) WriterFor(account common.Address) (ledger.Writer, error) {
	if c.transactor == nil {
		return nil, fmt.Errorf("ethledger: no transactor configured")
	}
	if c.transactor.From != account {
		return nil, fmt.Errorf("ethledger: no signer for account %s", account.Hex())
	}
	return &writer{c: c, opts: *c.transactor}, nil
}
