package ftms

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/bt"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/decode"
)

const DefaultResponseTimeout = 5 * time.Second

// Writer writes to a characteristic with response.
type Writer interface {
	Write(service, characteristic string, data []byte) error
}

// Indicator delivers control point indications.
type Indicator interface {
	Subscribe(service, characteristic string, fn func(buf []byte)) error
}

// ControlPoint runs Fitness Machine Control Point procedures. Every command first requests
// control, waits for it to be granted, then sends the command and waits for its own response.
// Failures are reported, never retried.
type ControlPoint struct {
	writer    Writer
	responses chan decode.ControlPointResponse
	procMu    sync.Mutex
	timeout   time.Duration
	logger    *log.Logger
}

func NewControlPoint(writer Writer, logger *log.Logger) *ControlPoint {
	if writer == nil {
		panic("ControlPoint: writer cannot be nil")
	}
	if logger == nil {
		panic("ControlPoint: logger cannot be nil")
	}
	return &ControlPoint{
		writer:    writer,
		responses: make(chan decode.ControlPointResponse, 4),
		timeout:   DefaultResponseTimeout,
		logger:    logger,
	}
}

// Listen subscribes HandleIndication to the control point characteristic.
func (c *ControlPoint) Listen(ind Indicator) error {
	return ind.Subscribe(bt.ServiceFitnessMachine, bt.CharFitnessMachineControlPoint, c.HandleIndication)
}

// HandleIndication feeds one control point indication into the pending procedure.
func (c *ControlPoint) HandleIndication(buf []byte) {
	resp, err := decode.DecodeControlPointResponse(buf)
	if err != nil {
		c.logger.Printf("FTMS: ignoring control point frame [% x]: %v", buf, err)
		return
	}
	c.logger.Printf("FTMS: %s -> %s", decode.OpCodeName(resp.RequestOpCode), resp.Result)
	select {
	case c.responses <- resp:
	default:
		c.logger.Printf("FTMS: response queue full, dropping %s", decode.OpCodeName(resp.RequestOpCode))
	}
}

func (c *ControlPoint) SetTargetResistance(ctx context.Context, level uint8) error {
	return c.run(ctx, decode.EncodeSetTargetResistance(level))
}

func (c *ControlPoint) SetTargetPower(ctx context.Context, watts int16) error {
	return c.run(ctx, decode.EncodeSetTargetPower(watts))
}

func (c *ControlPoint) StartOrResume(ctx context.Context) error {
	return c.run(ctx, decode.EncodeStartOrResume())
}

// RequestControl runs only the first phase.
func (c *ControlPoint) RequestControl(ctx context.Context) error {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	c.drain()
	return c.exchange(ctx, decode.EncodeRequestControl())
}

func (c *ControlPoint) run(ctx context.Context, command []byte) error {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	c.drain()

	if err := c.exchange(ctx, decode.EncodeRequestControl()); err != nil {
		return err
	}
	return c.exchange(ctx, command)
}

// exchange writes one command and waits for the response that names it.
func (c *ControlPoint) exchange(ctx context.Context, command []byte) error {
	op := command[0]
	if err := c.writer.Write(bt.ServiceFitnessMachine, bt.CharFitnessMachineControlPoint, command); err != nil {
		return fmt.Errorf("write %s: %w", decode.OpCodeName(op), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s response: %w", decode.OpCodeName(op), ctx.Err())
	case resp := <-c.responses:
		if resp.RequestOpCode != op {
			return fmt.Errorf("%w: response to %s while waiting for %s",
				decode.ErrUnexpectedOpCode, decode.OpCodeName(resp.RequestOpCode), decode.OpCodeName(op))
		}
		return resp.Err()
	}
}

// drain discards responses that arrived outside a procedure.
func (c *ControlPoint) drain() {
	for {
		select {
		case <-c.responses:
		default:
			return
		}
	}
}
