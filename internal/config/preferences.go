package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type preferencesData struct {
	PreferredDeviceByRole map[string]string `json:"preferred_device_by_role"`
}

// Preferences remembers the last device used for each role (heart rate, trainer, ...) across runs.
type Preferences struct {
	filePath string
	mu       sync.Mutex
	data     preferencesData
	logger   *log.Logger
}

func DefaultPreferencesPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".ble-telemetry", "devices.json")
}

func NewPreferences(filePath string, logger *log.Logger) *Preferences {
	if logger == nil {
		panic("Preferences: logger cannot be nil")
	}
	p := &Preferences{filePath: filePath, logger: logger}
	p.load()
	return p
}

func (p *Preferences) PreferredDevice(role string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.PreferredDeviceByRole[role]
}

func (p *Preferences) SetPreferredDevice(role, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.PreferredDeviceByRole[role] == address {
		return
	}
	p.logger.Printf("Preferences: setPreferredDevice %s -> %q", role, address)
	p.data.PreferredDeviceByRole[role] = address
	p.save()
}

// Devices returns every remembered address once, sorted.
func (p *Preferences) Devices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]bool)
	var result []string
	for _, addr := range p.data.PreferredDeviceByRole {
		if addr != "" && !seen[addr] {
			seen[addr] = true
			result = append(result, addr)
		}
	}
	sort.Strings(result)
	return result
}

func (p *Preferences) load() {
	p.data = preferencesData{
		PreferredDeviceByRole: make(map[string]string),
	}
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		p.logger.Printf("Preferences: load %s (no existing file)", p.filePath)
		return
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.logger.Printf("Preferences: load %s failed to parse: %v", p.filePath, err)
		return
	}
	if p.data.PreferredDeviceByRole == nil {
		p.data.PreferredDeviceByRole = make(map[string]string)
	}
	p.logger.Printf("Preferences: load %s -> %v", p.filePath, p.data.PreferredDeviceByRole)
}

func (p *Preferences) save() {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		p.logger.Printf("Preferences: save mkdir failed: %v", err)
		return
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		p.logger.Printf("Preferences: save marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(p.filePath, raw, 0644); err != nil {
		p.logger.Printf("Preferences: save %s failed: %v", p.filePath, err)
		return
	}
	p.logger.Printf("Preferences: save %s", p.filePath)
}
