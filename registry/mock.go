package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// MockRegistry mocks the DeviceRegistry interface.
type MockRegistry struct {
	mock.Mock
}

// FindDevice mocks the FindDevice method.
func (m *MockRegistry) FindDevice(ctx context.Context, id uuid.UUID) (*interfaces.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Device), args.Error(1)
}

// InsertDevice mocks the InsertDevice method.
func (m *MockRegistry) InsertDevice(ctx context.Context, device *interfaces.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

// UpdateTrustAndKey mocks the UpdateTrustAndKey method.
func (m *MockRegistry) UpdateTrustAndKey(ctx context.Context, id uuid.UUID, level interfaces.TrustLevel, publicKey []byte, counter uint32, certChain []byte) error {
	args := m.Called(ctx, id, level, publicKey, counter, certChain)
	return args.Error(0)
}

// UpdateCounterAndSeen mocks the UpdateCounterAndSeen method.
func (m *MockRegistry) UpdateCounterAndSeen(ctx context.Context, id uuid.UUID, prev, next uint32, seenAt time.Time) error {
	args := m.Called(ctx, id, prev, next, seenAt)
	return args.Error(0)
}
