package ledger

import "github.com/ethereum/go-ethereum/common"

// Signer hands out writers that sign on behalf of an account. Writers are
// requested per operation because the connected account may change.
type Signer interface {
	WriterFor(account common.Address) (Writer, error)
}

// Ledger is a collaborator that can both read and write.
type Ledger interface {
	Reader
	Signer
}
