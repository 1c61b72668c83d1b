package santa

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a connected wallet.
	ErrNotConnected = errors.New("santa: wallet not connected")

	// ErrInitialization is returned when the confidential system failed to
	// initialize.
	ErrInitialization = errors.New("santa: confidential system initialization failed")

	// ErrNotReady is returned when encryption or decryption is requested
	// before the confidential system is ready.
	ErrNotReady = errors.New("santa: confidential system not ready")

	// ErrSyncInProgress is returned by Refresh while another refresh runs.
	ErrSyncInProgress = errors.New("santa: refresh already in progress")

	// ErrSyncFatal is returned when the record identifiers could not be listed.
	ErrSyncFatal = errors.New("santa: failed to load records")

	// ErrTxRejected is returned when the user declined to sign.
	ErrTxRejected = errors.New("santa: transaction rejected by user")

	ErrSubmissionFailed = errors.New("santa: submission failed")
	ErrSubmitInProgress = errors.New("santa: submission already in progress")
	ErrDecryptionFailed = errors.New("santa: decryption failed")
	ErrRevealInProgress = errors.New("santa: reveal already in progress")
)
