// Package wallet keeps identity key material and signs on behalf of identities.
//
// A wallet is bound to the pool name it was created for. Key material never
// leaves the wallet; callers hand it bytes and get a signature back.
package wallet

import (
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

// Handle identifies an open wallet.
type Handle int32

// DIDInfo describes a DID to create.
type DIDInfo struct {
	// Seed is an optional 32 byte key seed; a random key is used when empty.
	Seed string
	// CID makes the DID the full verkey instead of its 16 byte prefix.
	CID bool
}

type wallet struct {
	name     string
	poolName string
	mu       sync.RWMutex
	keys     map[string]*keyPair
}

// Manager owns wallets and the handles they are opened under.
type Manager struct {
	mu      sync.RWMutex
	next    Handle
	wallets map[string]*wallet
	open    map[Handle]*wallet
}

// NewManager creates an empty wallet manager.
func NewManager() *Manager {
	return &Manager{
		wallets: make(map[string]*wallet),
		open:    make(map[Handle]*wallet),
	}
}

// Create creates a wallet bound to poolName.
func (m *Manager) Create(poolName, name string) error {
	if poolName == "" || name == "" {
		return ledgererr.Structuref("wallet: pool name and wallet name are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wallets[name]; ok {
		return errors.Wrapf(ledgererr.ErrWalletAlreadyExists, "wallet %s", name)
	}
	m.wallets[name] = &wallet{name: name, poolName: poolName, keys: make(map[string]*keyPair)}
	log.Infof("created wallet %s for pool %s", name, poolName)

	return nil
}

// Open opens a created wallet and returns a new handle for it.
func (m *Manager) Open(name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[name]
	if !ok {
		return 0, errors.Wrapf(ledgererr.ErrWalletNotFound, "wallet %s", name)
	}
	m.next++
	m.open[m.next] = w

	return m.next, nil
}

// Close invalidates the handle.
func (m *Manager) Close(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[h]; !ok {
		return errors.Wrapf(ledgererr.ErrInvalidWalletHandle, "handle %d", h)
	}
	delete(m.open, h)

	return nil
}

func (m *Manager) get(h Handle) (*wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.open[h]
	if !ok {
		return nil, errors.Wrapf(ledgererr.ErrInvalidWalletHandle, "handle %d", h)
	}
	return w, nil
}

// PoolName returns the name of the pool the wallet was created for.
func (m *Manager) PoolName(h Handle) (string, error) {
	w, err := m.get(h)
	if err != nil {
		return "", err
	}
	return w.poolName, nil
}

// CreateDID creates a key pair in the wallet and returns its DID and verkey.
func (m *Manager) CreateDID(h Handle, info DIDInfo) (string, string, error) {
	w, err := m.get(h)
	if err != nil {
		return "", "", err
	}

	kp, err := newKeyPair(info.Seed)
	if err != nil {
		return "", "", ledgererr.Structuref("did: %v", err)
	}
	id := did(kp.verkey, info.CID)

	w.mu.Lock()
	w.keys[id] = kp
	w.mu.Unlock()

	log.WithFields(log.Fields{"wallet": w.name, "did": id}).Debug("created did")
	return id, kp.verkey, nil
}

// Verkey returns the verkey stored for did.
func (m *Manager) Verkey(h Handle, did string) (string, error) {
	kp, err := m.key(h, did)
	if err != nil {
		return "", err
	}
	return kp.verkey, nil
}

// Sign signs msg with did's key and returns the base58 signature.
func (m *Manager) Sign(h Handle, did string, msg []byte) (string, error) {
	kp, err := m.key(h, did)
	if err != nil {
		return "", err
	}

	sig, err := kp.sign(msg)
	if err != nil {
		return "", errors.Wrapf(err, "sign as %s", did)
	}
	return base58.Encode(sig), nil
}

func (m *Manager) key(h Handle, did string) (*keyPair, error) {
	w, err := m.get(h)
	if err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	kp, ok := w.keys[did]
	if !ok {
		return nil, errors.Wrapf(ledgererr.ErrSignerNotFound, "did %s", did)
	}
	return kp, nil
}
