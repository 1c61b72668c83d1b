// Package localkms is a development implementation of the confidential
// computation capability.
//
// Values are sealed with XChaCha20-Poly1305 under a key derived from the KMS
// signing key and stored by handle. Input and decryption proofs are
// secp256k1 signatures of the KMS key, which the local ledger checks against
// the KMS address. It offers no confidentiality against whoever runs it.
package localkms

import (
	"context"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/gsanta/confidential"
	"github.com/tos-network/gsanta/santadb"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ciphertextPrefix = []byte("kms/ct/")
	signerKey        = []byte("kms/signer")
	aeadInfo         = []byte("gsanta.kms.aead.v1")
)

// KMS implements confidential.Capability on a local key-value store.
type KMS struct {
	db  santadb.KeyValueStore
	key *ecdsa.PrivateKey

	mu   sync.RWMutex
	aead cipher.AEAD

	log log.Logger
}

// New creates a KMS that signs with key and keeps ciphertexts in db.
func New(db santadb.KeyValueStore, key *ecdsa.PrivateKey) *KMS {
	return &KMS{
		db:  db,
		key: key,
		log: log.New("module", "kms"),
	}
}

// LoadOrCreateKey returns the signing key persisted in db, generating and
// storing a fresh one on first use.
func LoadOrCreateKey(db santadb.KeyValueStore) (*ecdsa.PrivateKey, error) {
	raw, err := db.Get(signerKey)
	if err == nil {
		return crypto.ToECDSA(raw)
	}
	if err != santadb.ErrNotFound {
		return nil, err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := db.Put(signerKey, crypto.FromECDSA(key)); err != nil {
		return nil, err
	}
	log.Info("Generated development KMS key", "address", crypto.PubkeyToAddress(key.PublicKey))
	return key, nil
}

// Address is the signer address proofs are checked against.
func (k *KMS) Address() common.Address {
	return crypto.PubkeyToAddress(k.key.PublicKey)
}

// Initialize derives the sealing key. Repeated calls are harmless.
func (k *KMS) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.key == nil {
		return fmt.Errorf("kms: no signing key configured")
	}
	if _, err := k.db.Has(signerKey); err != nil {
		return fmt.Errorf("kms: store unavailable: %w", err)
	}
	secret := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, crypto.FromECDSA(k.key), nil, aeadInfo), secret); err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.aead = aead
	k.mu.Unlock()

	k.log.Debug("KMS initialized", "address", k.Address())
	return nil
}

func (k *KMS) sealer() (cipher.AEAD, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.aead == nil {
		return nil, confidential.ErrNotInitialized
	}
	return k.aead, nil
}

// Encrypt seals value for user within contract and returns its handle with
// an input proof.
func (k *KMS) Encrypt(ctx context.Context, contract, user common.Address, value uint64) (*confidential.Artifact, error) {
	aead, err := k.sealer()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	aad := append(contract.Bytes(), user.Bytes()...)
	sealed := aead.Seal(nil, nonce, confidential.EncodeClearValues([]uint64{value}), aad)

	entry := encodeEntry(contract, user, nonce, sealed)
	handle := crypto.Keccak256Hash(entry)
	if err := k.db.Put(ciphertextKey(handle), entry); err != nil {
		return nil, err
	}
	proof, err := confidential.Sign(confidential.InputProofDigest(contract, user, handle), k.key)
	if err != nil {
		return nil, err
	}
	k.log.Trace("Encrypted value", "handle", handle, "contract", contract, "user", user)
	return &confidential.Artifact{Ciphertext: handle, Proof: proof}, nil
}

// RequestDecryptionProof decrypts handles, signs the clear values and passes
// them to submit.
func (k *KMS) RequestDecryptionProof(ctx context.Context, handles []common.Hash, contract common.Address, submit confidential.SubmitFunc) (*confidential.DecryptionResult, error) {
	aead, err := k.sealer()
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, confidential.ErrNoHandles
	}
	values := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := k.open(aead, h, contract)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	encoded := confidential.EncodeClearValues(values)
	proof, err := confidential.Sign(confidential.DecryptionDigest(contract, handles, encoded), k.key)
	if err != nil {
		return nil, err
	}
	if err := submit(ctx, encoded, proof); err != nil {
		return nil, err
	}
	res := &confidential.DecryptionResult{
		ClearValues: make(map[common.Hash]uint64, len(handles)),
		Encoded:     encoded,
		Proof:       proof,
	}
	for i, h := range handles {
		res.ClearValues[h] = values[i]
	}
	return res, nil
}

func (k *KMS) open(aead cipher.AEAD, handle common.Hash, contract common.Address) (uint64, error) {
	raw, err := k.db.Get(ciphertextKey(handle))
	if err == santadb.ErrNotFound {
		return 0, fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, handle.Hex())
	}
	if err != nil {
		return 0, err
	}
	owner, user, nonce, sealed, err := decodeEntry(raw, aead.NonceSize())
	if err != nil {
		return 0, err
	}
	if owner != contract {
		return 0, fmt.Errorf("%w: %s not bound to %s", confidential.ErrUnknownHandle, handle.Hex(), contract.Hex())
	}
	plain, err := aead.Open(nil, nonce, sealed, append(owner.Bytes(), user.Bytes()...))
	if err != nil {
		return 0, fmt.Errorf("kms: open %s: %w", handle.Hex(), err)
	}
	vals, err := confidential.DecodeClearValues(plain)
	if err != nil || len(vals) != 1 {
		return 0, confidential.ErrInvalidEncoding
	}
	return vals[0], nil
}

func ciphertextKey(handle common.Hash) []byte {
	key := make([]byte, 0, len(ciphertextPrefix)+common.HashLength)
	key = append(key, ciphertextPrefix...)
	return append(key, handle.Bytes()...)
}

// encodeEntry lays out a stored ciphertext as contract | user | nonce | sealed.
func encodeEntry(contract, user common.Address, nonce, sealed []byte) []byte {
	out := make([]byte, 0, 2*common.AddressLength+len(nonce)+len(sealed))
	out = append(out, contract.Bytes()...)
	out = append(out, user.Bytes()...)
	out = append(out, nonce...)
	return append(out, sealed...)
}

func decodeEntry(raw []byte, nonceSize int) (contract, user common.Address, nonce, sealed []byte, err error) {
	head := 2*common.AddressLength + nonceSize
	if len(raw) <= head {
		return common.Address{}, common.Address{}, nil, nil, fmt.Errorf("kms: truncated ciphertext entry")
	}
	contract = common.BytesToAddress(raw[:common.AddressLength])
	user = common.BytesToAddress(raw[common.AddressLength : 2*common.AddressLength])
	return contract, user, raw[2*common.AddressLength : head], raw[head:], nil
}
