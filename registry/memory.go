package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// MemoryRegistry is an in-process DeviceRegistry for single-instance
// deployments and tests.
type MemoryRegistry struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*interfaces.Device
}

// NewMemoryRegistry creates an empty in-memory device registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{devices: make(map[uuid.UUID]*interfaces.Device)}
}

// FindDevice returns a copy of the stored record.
func (r *MemoryRegistry) FindDevice(ctx context.Context, id uuid.UUID) (*interfaces.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, interfaces.ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

// InsertDevice stores a copy of the new device record.
func (r *MemoryRegistry) InsertDevice(ctx context.Context, device *interfaces.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[device.ID]; ok {
		return interfaces.ErrDeviceExists
	}
	r.devices[device.ID] = copyDevice(device)
	return nil
}

// UpdateTrustAndKey upgrades a device after successful attestation. Trust
// levels only move forward and a set public key is immutable.
func (r *MemoryRegistry) UpdateTrustAndKey(ctx context.Context, id uuid.UUID, level interfaces.TrustLevel, publicKey []byte, counter uint32, certChain []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return interfaces.ErrDeviceNotFound
	}
	if d.TrustLevel == interfaces.TrustHardwareVerified && level != interfaces.TrustHardwareVerified {
		return interfaces.ErrTrustDowngrade
	}
	if d.PublicKey != nil {
		return interfaces.ErrPublicKeyImmutable
	}

	d.TrustLevel = level
	d.PublicKey = append([]byte(nil), publicKey...)
	d.Counter = counter
	d.CertificateChain = append([]byte(nil), certChain...)
	return nil
}

// UpdateCounterAndSeen advances the counter, conditional on the stored value
// still being prev.
func (r *MemoryRegistry) UpdateCounterAndSeen(ctx context.Context, id uuid.UUID, prev, next uint32, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return interfaces.ErrDeviceNotFound
	}
	if d.Counter != prev {
		return interfaces.ErrCounterConflict
	}
	if next <= prev {
		return interfaces.ErrCounterConflict
	}

	d.Counter = next
	d.LastSeenAt = seenAt
	return nil
}

func copyDevice(d *interfaces.Device) *interfaces.Device {
	dup := *d
	dup.PublicKey = append([]byte(nil), d.PublicKey...)
	dup.CertificateChain = append([]byte(nil), d.CertificateChain...)
	if d.PublicKey == nil {
		dup.PublicKey = nil
	}
	if d.CertificateChain == nil {
		dup.CertificateChain = nil
	}
	return &dup
}
