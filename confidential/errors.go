package confidential

import "errors"

var (
	// ErrNotInitialized indicates a call before Initialize succeeded.
	ErrNotInitialized = errors.New("confidential: capability not initialized")

	// ErrUnknownHandle indicates a handle the capability holds no ciphertext for.
	ErrUnknownHandle = errors.New("confidential: unknown handle")

	// ErrInvalidEncoding indicates malformed clear value bytes.
	ErrInvalidEncoding = errors.New("confidential: invalid clear value encoding")

	// ErrInvalidSignature indicates a proof signature of the wrong shape.
	ErrInvalidSignature = errors.New("confidential: invalid proof signature")

	// ErrNoHandles indicates an empty decryption request.
	ErrNoHandles = errors.New("confidential: no handles requested")
)
