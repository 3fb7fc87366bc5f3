// Package signer signs requests with keys held in a wallet and submits them.
package signer

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/core/request"
	"github.com/vadiminshakov/ledgerpool/core/wallet"
)

// Wallet holds signing keys.
//
//go:generate mockgen -destination=../../mocks/mock_wallet.go -package=mocks . Wallet
type Wallet interface {
	PoolName(h wallet.Handle) (string, error)
	Sign(h wallet.Handle, did string, msg []byte) (string, error)
}

// Submitter sends requests to a pool.
//
//go:generate mockgen -destination=../../mocks/mock_submitter.go -package=mocks . Submitter
type Submitter interface {
	PoolName(h pool.Handle) (string, error)
	Submit(ctx context.Context, h pool.Handle, req *request.Request) (*dto.Reply, error)
}

// Signer signs requests with wallet keys and hands them to a Submitter.
type Signer struct {
	wallets   Wallet
	submitter Submitter
}

// New creates a Signer. submitter may be nil when only SignRequest is used.
func New(wallets Wallet, submitter Submitter) *Signer {
	return &Signer{wallets: wallets, submitter: submitter}
}

// SignRequest returns a copy of req signed by signerDID. The signature covers
// the request without its signature field, so an earlier signature is replaced.
// An empty request identifier is set to signerDID.
func (s *Signer) SignRequest(wh wallet.Handle, signerDID string, req *request.Request) (*request.Request, error) {
	if req == nil || req.Operation == nil {
		return nil, ledgererr.Structuref("sign: request is empty")
	}
	if signerDID == "" {
		return nil, ledgererr.Structuref("sign: signer did is required")
	}

	if req.Identifier != "" && req.Identifier != signerDID {
		return nil, ledgererr.Structuref("sign: request identifier %s does not match signer %s", req.Identifier, signerDID)
	}

	signed := *req
	signed.Identifier = signerDID
	signed.Signature = ""

	msg, err := signed.SigningBytes()
	if err != nil {
		return nil, errors.Wrap(ledgererr.ErrInvalidStructure, err.Error())
	}

	sig, err := s.wallets.Sign(wh, signerDID, msg)
	if err != nil {
		return nil, err
	}
	signed.Signature = sig

	return &signed, nil
}

// SignAndSubmit signs req as signerDID and submits it through the pool. The
// wallet must have been created for that pool; that is checked before the
// signer is looked up.
func (s *Signer) SignAndSubmit(ctx context.Context, ph pool.Handle, wh wallet.Handle, signerDID string, req *request.Request) (*dto.Reply, error) {
	poolName, err := s.submitter.PoolName(ph)
	if err != nil {
		return nil, err
	}
	walletPool, err := s.wallets.PoolName(wh)
	if err != nil {
		return nil, err
	}

	if walletPool != poolName {
		return nil, errors.Wrapf(ledgererr.ErrWalletIncompatiblePool, "wallet is bound to pool %s, not %s", walletPool, poolName)
	}

	signed, err := s.SignRequest(wh, signerDID, req)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"pool": poolName, "req_id": signed.ReqID, "signer": signerDID}).Debug("submitting signed request")
	return s.submitter.Submit(ctx, ph, signed)
}
