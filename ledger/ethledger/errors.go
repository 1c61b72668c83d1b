package ethledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tos-network/gsanta/ledger"
)

// errCodeUserRejected is the EIP-1193 code wallets use for a declined request.
const errCodeUserRejected = 4001

// classify translates transport and contract errors into ledger sentinels so
// that callers never match on message text.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrTxRejected) || errors.Is(err, keystore.ErrLocked) {
		return fmt.Errorf("%w: %v", ledger.ErrTxRejected, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == errCodeUserRejected {
		return fmt.Errorf("%w: %v", ledger.ErrTxRejected, err)
	}
	switch revertReason(err) {
	case revertAlreadyVerified:
		return fmt.Errorf("%w: %v", ledger.ErrAlreadyVerified, err)
	case revertDuplicate:
		return fmt.Errorf("%w: %v", ledger.ErrDuplicateRecord, err)
	case revertNotFound:
		return fmt.Errorf("%w: %v", ledger.ErrRecordNotFound, err)
	}
	return err
}

// revertReason extracts the Error(string) payload carried in the data field
// of a JSON-RPC error, or "" when there is none.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	var raw []byte
	switch data := dataErr.ErrorData().(type) {
	case string:
		dec, err := hexutil.Decode(data)
		if err != nil {
			return ""
		}
		raw = dec
	case []byte:
		raw = data
	default:
		return ""
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return ""
	}
	return reason
}
