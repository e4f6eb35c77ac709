package bt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/events"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/go_func_utils"
	"tinygo.org/x/bluetooth"
)

// ConnectionChange is published whenever the adapter reports a link going up or down.
type ConnectionChange struct {
	Address   string
	Connected bool
}

// Manager owns the adapter: scanning, connection bookkeeping and the peripheral registry.
type Manager struct {
	adapter     *bluetooth.Adapter
	peripherals map[string]*peripheral
	mu          sync.RWMutex
	scanning    bool
	scanTimeout time.Duration
	scanCancel  context.CancelFunc

	scanEvent       *events.Event[[]Peripheral]
	connectionEvent *events.Event[ConnectionChange]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

func NewManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *Manager {
	if logger == nil {
		panic("Manager: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		adapter:         adapter,
		peripherals:     make(map[string]*peripheral),
		scanTimeout:     scanTimeout,
		scanEvent:       events.NewEvent[[]Peripheral](true),
		connectionEvent: events.NewEvent[ConnectionChange](false),
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
	}
}

func (m *Manager) lookup(address bluetooth.Address) *peripheral {
	key := address.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peripherals[key]
	if !ok {
		p = newPeripheral(m.logger, address)
		m.peripherals[key] = p
	}
	return p
}

// Enable powers the adapter and starts tracking link state.
func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		p := m.lookup(device.Address)
		if connected {
			m.logger.Printf("Manager: connected %s", p.Address())
			p.setDevice(&device, Connected)
		} else {
			m.logger.Printf("Manager: disconnected %s", p.Address())
			p.setDevice(nil, Disconnected)
		}
		m.connectionEvent.Notify(ConnectionChange{Address: p.Address(), Connected: connected})
	})
	return m.adapter.Enable()
}

// StartScan scans until StopScan or Shutdown. A non-empty filter keeps only advertisers of
// at least one of the given service UUIDs.
func (m *Manager) StartScan(serviceFilter []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scanning && m.scanCancel != nil {
		m.logger.Printf("Manager: restarting scan")
		m.scanCancel()
	}

	filter := make(map[string]struct{}, len(serviceFilter))
	for _, s := range serviceFilter {
		filter[s] = struct{}{}
	}

	var scanCtx context.Context
	scanCtx, m.scanCancel = context.WithCancel(m.ctx)
	m.scanning = true
	m.logger.Printf("Manager: scanning, filter %v", serviceFilter)

	m.wg.Add(1)
	go_func_utils.SafeGo(m.logger, "scan", func() {
		defer m.wg.Done()
		err := m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				return
			}
			if len(filter) > 0 && !advertisesAny(result, filter) {
				return
			}
			p := m.lookup(result.Address)
			first := !p.seenSince(time.Time{})
			p.observe(result, time.Now())
			if first {
				m.logger.Printf("Manager: found %s (%s) rssi %d", p.Name(), p.Address(), result.RSSI)
			}
		})
		if err != nil {
			m.logger.Printf("Manager: scan error: %v", err)
		}
	})

	m.wg.Add(1)
	go_func_utils.SafeGo(m.logger, "scan-publish", func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
				m.scanEvent.Notify(m.ScanResults())
			}
		}
	})
}

func advertisesAny(result bluetooth.ScanResult, filter map[string]struct{}) bool {
	for _, u := range result.ServiceUUIDs() {
		if _, ok := filter[u.String()]; ok {
			return true
		}
	}
	return false
}

func (m *Manager) StopScan() error {
	m.mu.Lock()
	wasScanning := m.scanning
	m.scanning = false
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	m.mu.Unlock()

	if !wasScanning {
		return nil
	}
	return m.adapter.StopScan()
}

func (m *Manager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

// ScanResults lists peripherals seen within the scan timeout.
func (m *Manager) ScanResults() []Peripheral {
	cutoff := time.Now().Add(-m.scanTimeout)
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Peripheral, 0, len(m.peripherals))
	for _, p := range m.peripherals {
		if p.seenSince(cutoff) {
			result = append(result, p)
		}
	}
	return result
}

func (m *Manager) ConnectedPeripherals() []Peripheral {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Peripheral
	for _, p := range m.peripherals {
		if p.State() == Connected {
			result = append(result, p)
		}
	}
	return result
}

// Connect waits for address to show up in scan results, then connects to it.
func (m *Manager) Connect(ctx context.Context, address string) (Peripheral, error) {
	p, err := m.waitForAdvertisement(ctx, address)
	if err != nil {
		return nil, err
	}

	m.logger.Printf("Manager: connecting to %s", address)
	p.setState(Connecting)
	device, err := m.adapter.Connect(p.address, bluetooth.ConnectionParams{})
	if err != nil {
		p.setState(Disconnected)
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}
	p.setDevice(&device, Connected)
	return p, nil
}

func (m *Manager) waitForAdvertisement(ctx context.Context, address string) (*peripheral, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		m.mu.RLock()
		p, ok := m.peripherals[address]
		m.mu.RUnlock()
		if ok && p.seenSince(time.Now().Add(-m.scanTimeout)) {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s to advertise: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *Manager) Disconnect(address string) error {
	m.mu.RLock()
	p, ok := m.peripherals[address]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown peripheral %s", address)
	}
	device := p.connectedDevice()
	if device == nil {
		return nil
	}
	return device.Disconnect()
}

func (m *Manager) ListenToScanResults(ch chan<- []Peripheral) func() {
	return m.scanEvent.Listen(ch)
}

func (m *Manager) SubscribeToConnections(fn func(ConnectionChange)) func() {
	return m.connectionEvent.Subscribe(fn)
}

// Shutdown disconnects everything, stops scanning and waits for the manager's goroutines.
func (m *Manager) Shutdown() {
	m.logger.Println("Manager: shutting down")
	for _, p := range m.ConnectedPeripherals() {
		if err := m.Disconnect(p.Address()); err != nil {
			m.logger.Printf("Manager: disconnect %s: %v", p.Address(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("Manager: stop scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("Manager: shutdown complete")
}
