package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory catalog used by tests and file-backed deployments.
// It is safe for concurrent reads; loading happens before executions start.
type Memory struct {
	mu         sync.RWMutex
	devices    map[string]*Device
	interfaces map[string]*Interface
	records    map[string]*Record
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		devices:    make(map[string]*Device),
		interfaces: make(map[string]*Interface),
		records:    make(map[string]*Record),
	}
}

// AddDevice registers a device snapshot.
func (m *Memory) AddDevice(device *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices[device.ID] = device
}

// AddInterface registers an interface snapshot.
func (m *Memory) AddInterface(iface *Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interfaces[iface.ID] = iface
}

// AddRecord registers a generic catalog object.
func (m *Memory) AddRecord(record *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.ID] = record
}

func (m *Memory) Device(_ context.Context, id string) (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrTargetNotFound)
	}

	return device, nil
}

func (m *Memory) Interface(_ context.Context, id string) (*Interface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.interfaces[id]
	if !ok {
		return nil, fmt.Errorf("interface %s: %w", id, ErrTargetNotFound)
	}

	return iface, nil
}

func (m *Memory) Resolve(ctx context.Context, kind, id string) (Target, error) {
	switch kind {
	case KindDevice:
		return m.Device(ctx, id)
	case KindInterface:
		return m.Interface(ctx, id)
	default:
		m.mu.RLock()
		defer m.mu.RUnlock()

		record, ok := m.records[id]
		if !ok {
			return nil, fmt.Errorf("%s %s: %w", kind, id, ErrTargetNotFound)
		}

		return record, nil
	}
}
