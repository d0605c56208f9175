package services

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"schoolpulse/pkg/contracts/domain"
	"schoolpulse/pkg/contracts/events"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, msgType events.MessageType, data interface{}) error {
	args := m.Called(msgType, data)
	return args.Error(0)
}

type mockSheets struct {
	mock.Mock
}

func (m *mockSheets) Fetch(ctx context.Context, id string) (domain.Workbook, error) {
	args := m.Called(id)
	return args.Get(0).(domain.Workbook), args.Error(1)
}

// brokenStore fails every call
type brokenStore struct{}

var errDiskFull = errors.New("disk full")

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, errDiskFull }
func (brokenStore) Set(ctx context.Context, key string, value []byte) error { return errDiskFull }

type fixedStatus CatalogStatus

func (f fixedStatus) Status() CatalogStatus { return CatalogStatus(f) }

type fixedClients int

func (f fixedClients) ClientCount() int { return int(f) }
