package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

type snapshot struct {
	Devices    []*Device    `json:"devices"`
	Interfaces []*Interface `json:"interfaces"`
	Records    []*Record    `json:"records"`
}

// LoadFile builds an in-memory catalog from a JSON snapshot file. Snapshots
// are exported from the host inventory system; an empty path yields an
// empty catalog.
func LoadFile(path string) (*Memory, error) {
	memory := NewMemory()

	if path == "" {
		return memory, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot %s: %w", path, err)
	}

	var snap snapshot

	err = json.Unmarshal(data, &snap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog snapshot %s: %w", path, err)
	}

	for _, device := range snap.Devices {
		memory.AddDevice(device)
	}

	for _, iface := range snap.Interfaces {
		memory.AddInterface(iface)
	}

	for _, record := range snap.Records {
		memory.AddRecord(record)
	}

	return memory, nil
}
