package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/safe_map"
	"tinygo.org/x/bluetooth"
)

type DeviceState int

const (
	Disconnected DeviceState = iota
	Connecting
	Connected
)

func (s DeviceState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

var ErrNotConnected = errors.New("peripheral not connected")

// Peripheral is one remote sensor, either discovered by a scan or simulated.
// Service and characteristic arguments are 128-bit UUID strings.
type Peripheral interface {
	Address() string
	Name() string
	RSSI() (int16, error)
	State() DeviceState
	Services() []string
	HasService(uuid string) bool
	Subscribe(service, characteristic string, fn func(buf []byte)) error
	Unsubscribe(service, characteristic string) error
	Read(service, characteristic string) ([]byte, error)
	Write(service, characteristic string, data []byte) error
	WriteWithoutResponse(service, characteristic string, data []byte) error
}

type gattKey struct {
	service        string
	characteristic string
}

type peripheral struct {
	address  bluetooth.Address
	name     string
	lastSeen time.Time
	rssi     int16
	scanned  bool
	services []string
	device   *bluetooth.Device
	state    DeviceState
	dropGATT bool // set on disconnect, consumed by resolve
	mu       sync.RWMutex

	// gattMu serialises discovery, subscription and writes; concurrent GATT calls confuse BlueZ.
	gattMu          sync.Mutex
	servicesFetched bool
	serviceCache    *safe_map.SafeMap[string, *bluetooth.DeviceService]
	charCache       *safe_map.SafeMap[gattKey, *bluetooth.DeviceCharacteristic]
	charsFetched    *safe_map.SafeMap[string, bool]

	logger *log.Logger
}

var _ Peripheral = (*peripheral)(nil)

func newPeripheral(logger *log.Logger, address bluetooth.Address) *peripheral {
	if logger == nil {
		panic("peripheral: logger must be non nil")
	}
	return &peripheral{
		address:      address,
		name:         "Unknown",
		state:        Disconnected,
		serviceCache: safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		charCache:    safe_map.NewSafeMap[gattKey, *bluetooth.DeviceCharacteristic](),
		charsFetched: safe_map.NewSafeMap[string, bool](),
		logger:       logger,
	}
}

func (p *peripheral) Address() string {
	return p.address.String()
}

func (p *peripheral) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *peripheral) RSSI() (int16, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.scanned {
		return 0, errors.New("no rssi available")
	}
	return p.rssi, nil
}

func (p *peripheral) State() DeviceState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *peripheral) Services() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.services...)
}

func (p *peripheral) HasService(uuid string) bool {
	for _, s := range p.Services() {
		if s == uuid {
			return true
		}
	}
	return false
}

func (p *peripheral) observe(result bluetooth.ScanResult, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
	p.rssi = result.RSSI
	p.scanned = true
	if n := result.LocalName(); n != "" {
		p.name = n
	}
	if len(p.services) == 0 {
		for _, u := range result.ServiceUUIDs() {
			p.services = append(p.services, u.String())
		}
	}
}

func (p *peripheral) seenSince(cutoff time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scanned && p.lastSeen.After(cutoff)
}

func (p *peripheral) setDevice(device *bluetooth.Device, state DeviceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = device
	p.state = state
	if device == nil {
		p.dropGATT = true
	}
}

func (p *peripheral) takeDropGATT() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	drop := p.dropGATT
	p.dropGATT = false
	return drop
}

func (p *peripheral) setState(state DeviceState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *peripheral) connectedDevice() *bluetooth.Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

func (p *peripheral) Subscribe(service, characteristic string, fn func(buf []byte)) error {
	p.gattMu.Lock()
	defer p.gattMu.Unlock()

	char, err := p.resolve(service, characteristic)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(fn); err != nil {
		return fmt.Errorf("enable notifications on %s: %w", characteristic, err)
	}
	p.logger.Printf("Peripheral %s: subscribed to %s", p.Address(), characteristic)
	return nil
}

func (p *peripheral) Unsubscribe(service, characteristic string) error {
	p.gattMu.Lock()
	defer p.gattMu.Unlock()

	char, err := p.resolve(service, characteristic)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(nil); err != nil {
		return fmt.Errorf("disable notifications on %s: %w", characteristic, err)
	}
	return nil
}

func (p *peripheral) Read(service, characteristic string) ([]byte, error) {
	p.gattMu.Lock()
	defer p.gattMu.Unlock()

	char, err := p.resolve(service, characteristic)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 512)
	n, err := char.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", characteristic, err)
	}
	return buf[:n], nil
}

func (p *peripheral) Write(service, characteristic string, data []byte) error {
	return p.write(service, characteristic, data, true)
}

func (p *peripheral) WriteWithoutResponse(service, characteristic string, data []byte) error {
	return p.write(service, characteristic, data, false)
}

func (p *peripheral) write(service, characteristic string, data []byte, withResponse bool) error {
	p.gattMu.Lock()
	defer p.gattMu.Unlock()

	char, err := p.resolve(service, characteristic)
	if err != nil {
		return err
	}
	if withResponse {
		_, err = char.Write(data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", characteristic, err)
	}
	return nil
}

// resolve finds a characteristic, discovering every service on first use and every
// characteristic of a service on first use of that service. Discovering one service at a
// time interrupts notifications already running on another. Caller holds gattMu.
func (p *peripheral) resolve(service, characteristic string) (*bluetooth.DeviceCharacteristic, error) {
	if p.takeDropGATT() {
		p.servicesFetched = false
		p.serviceCache = safe_map.NewSafeMap[string, *bluetooth.DeviceService]()
		p.charCache = safe_map.NewSafeMap[gattKey, *bluetooth.DeviceCharacteristic]()
		p.charsFetched = safe_map.NewSafeMap[string, bool]()
	}

	key := gattKey{service: service, characteristic: characteristic}
	if c, ok := p.charCache.Load(key); ok {
		return c, nil
	}

	device := p.connectedDevice()
	if device == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, p.Address())
	}

	if !p.servicesFetched {
		services, err := device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("discover services: %w", err)
		}
		discovered := make([]string, 0, len(services))
		for i := range services {
			uuid := services[i].UUID().String()
			p.serviceCache.Store(uuid, &services[i])
			discovered = append(discovered, uuid)
		}
		p.mu.Lock()
		p.services = discovered // advertisements usually carry only some of them
		p.mu.Unlock()
		p.servicesFetched = true
		p.logger.Printf("Peripheral %s: discovered %d services", p.Address(), len(services))
	}

	svc, ok := p.serviceCache.Load(service)
	if !ok {
		return nil, fmt.Errorf("service %s not found on %s", service, p.Address())
	}

	if fetched, _ := p.charsFetched.Load(service); !fetched {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", service, err)
		}
		for i := range chars {
			p.charCache.Store(gattKey{service: service, characteristic: chars[i].UUID().String()}, &chars[i])
		}
		p.charsFetched.Store(service, true)
	}

	c, ok := p.charCache.Load(key)
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", characteristic, service)
	}
	return c, nil
}
