// Package ledgererr defines the error kinds a ledger client caller programs against.
//
// Every failure returned by the client matches exactly one of the sentinels
// below through errors.Is.
package ledgererr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidStructure is returned when request input violates a required-field,
	// enumeration or shape constraint.
	ErrInvalidStructure = errors.New("invalid structure")

	// ErrInvalidPoolHandle is returned for unknown or closed pool handles.
	ErrInvalidPoolHandle = errors.New("invalid pool handle")
	// ErrInvalidWalletHandle is returned for unknown or closed wallet handles.
	ErrInvalidWalletHandle = errors.New("invalid wallet handle")

	// ErrSignerNotFound is returned when the signer DID has no key in the wallet.
	ErrSignerNotFound = errors.New("signer not found in wallet")
	// ErrWalletIncompatiblePool is returned when a wallet created for one pool
	// is used to submit through another.
	ErrWalletIncompatiblePool = errors.New("wallet is incompatible with pool")
	// ErrWalletAlreadyExists is returned when creating a wallet whose name is taken.
	ErrWalletAlreadyExists = errors.New("wallet already exists")
	// ErrWalletNotFound is returned when opening a wallet that was never created.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrLedgerInvalidTransaction is matched by every quorum rejection.
	ErrLedgerInvalidTransaction = errors.New("ledger rejected transaction")

	// ErrConsensusTimeout is returned when no quorum formed in time.
	ErrConsensusTimeout = errors.New("consensus timeout")

	// ErrJournal is returned when a request could not be journaled before
	// dispatch. The request was not sent.
	ErrJournal = errors.New("request journal failure")
)

// Rejection carries the reason a quorum of nodes gave for rejecting a request.
type Rejection struct {
	Op     string
	Reason string
	ReqID  uint64
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s for request %d: %s", ErrLedgerInvalidTransaction, r.Op, r.ReqID, r.Reason)
}

// Is reports whether target is ErrLedgerInvalidTransaction.
func (r *Rejection) Is(target error) bool {
	return target == ErrLedgerInvalidTransaction
}

// Structuref wraps ErrInvalidStructure with a formatted description.
func Structuref(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidStructure, format, args...)
}
