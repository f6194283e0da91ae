package pipeline

import (
	"context"
	"fmt"

	"github.com/aurihome/aurihome-core/internal/bridge"
	"github.com/aurihome/aurihome-core/internal/device"
	"github.com/aurihome/aurihome-core/internal/eventlog"
)

// Logger defines the logging interface used by the Pipeline.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Commander publishes outbound device commands. The transport bridge
// satisfies it; tests substitute a fake.
type Commander interface {
	SendCommand(ctx context.Context, dev *device.Device, desired map[string]any) error
}

// Trigger feeds applied deltas into event-scenario evaluation. The
// automation engine satisfies it.
type Trigger interface {
	OnDeviceStateChanged(ctx context.Context, deviceID string, mergedState map[string]any)
}

// ScenarioResetter clears all scenarios during a factory reset.
type ScenarioResetter interface {
	Reset(ctx context.Context) error
}

// Telemetry receives numeric state samples. Optional; the InfluxDB
// client satisfies it.
type Telemetry interface {
	WriteDeviceState(deviceID, deviceType, room string, state map[string]any)
}

// Pipeline is the orchestration loop: every state delta, whatever its
// source, funnels through here. Applying a delta persists the merge,
// appends a DEVICE_STATE log entry, feeds the automation engine's
// event triggers, and, for deltas that did not come from hardware,
// publishes the matching outbound command.
type Pipeline struct {
	devices   *device.Registry
	events    eventlog.Repository
	scenarios ScenarioResetter
	trigger   Trigger
	commander Commander
	telemetry Telemetry
	logger    Logger
}

// New creates the orchestration pipeline. Trigger, commander and
// telemetry are wired afterwards via the setters because they form a
// cycle with the components that depend on the pipeline.
func New(devices *device.Registry, events eventlog.Repository, scenarios ScenarioResetter, logger Logger) *Pipeline {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pipeline{
		devices:   devices,
		events:    events,
		scenarios: scenarios,
		logger:    logger,
	}
}

// SetTrigger wires the automation engine. Called once during startup.
func (p *Pipeline) SetTrigger(t Trigger) { p.trigger = t }

// SetCommander wires the transport bridge. Called once during startup.
func (p *Pipeline) SetCommander(c Commander) { p.commander = c }

// SetTelemetry wires the optional telemetry sink.
func (p *Pipeline) SetTelemetry(t Telemetry) { p.telemetry = t }

// ApplyTransportDelta applies a state delta that arrived from hardware.
// Unknown attributes for the device's type are dropped rather than
// rejected, because hardware reports fields we do not model. No outbound
// command is published; the hardware already holds this state. A device
// that was marked OFFLINE or DISCONNECTED returns to ONLINE here, since
// an inbound report is the proof of reachability.
func (p *Pipeline) ApplyTransportDelta(ctx context.Context, deviceID string, delta map[string]any) error {
	dev, err := p.devices.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", deviceID, err)
	}

	// A report from the hardware proves the device is reachable again,
	// whatever the current status says.
	if dev.Status != device.StatusOnline {
		if err := p.devices.SetStatus(ctx, dev.ID, device.StatusOnline); err != nil {
			p.logger.Error("restoring device status", "device_id", deviceID, "error", err)
		}
	}

	filtered := device.FilterState(dev.Type, delta)
	if len(filtered) == 0 {
		p.logger.Debug("transport delta had no applicable attributes", "device_id", deviceID)
		return nil
	}

	return p.apply(ctx, dev, filtered, false)
}

// ApplyCommandDelta applies a user-initiated state delta. Attributes
// are validated strictly against the device type, the merged result is
// mirrored to hardware as an outbound command, and the change feeds
// event-triggered scenarios like any other write.
func (p *Pipeline) ApplyCommandDelta(ctx context.Context, deviceID string, delta map[string]any) error {
	dev, err := p.devices.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", deviceID, err)
	}

	if err := device.ValidateState(dev.Type, delta); err != nil {
		return err
	}

	return p.apply(ctx, dev, delta, true)
}

// ApplyStateDelta applies an automation action's payload. It shares the
// user command path: strict validation, outbound mirroring, and
// re-triggering. The automation engine catches and logs the error when
// the action references an unknown device or a foreign attribute.
func (p *Pipeline) ApplyStateDelta(ctx context.Context, deviceID string, delta map[string]any) error {
	return p.ApplyCommandDelta(ctx, deviceID, delta)
}

// apply is the single serialized write path behind all three sources.
func (p *Pipeline) apply(ctx context.Context, dev *device.Device, delta device.State, outbound bool) error {
	updated, err := p.devices.ApplyStateDelta(ctx, dev.ID, delta)
	if err != nil {
		return fmt.Errorf("applying delta to %s: %w", dev.ID, err)
	}

	p.appendEntry(ctx, &eventlog.Entry{
		Type:     eventlog.TypeDeviceState,
		DeviceID: updated.ID,
		Message:  fmt.Sprintf("%s state changed", updated.Name),
		Data:     map[string]any(delta),
	})

	if p.telemetry != nil {
		p.telemetry.WriteDeviceState(updated.ID, string(updated.Type), updated.Room, updated.State)
	}

	if outbound && p.commander != nil {
		if cmdErr := p.commander.SendCommand(ctx, updated, delta); cmdErr != nil {
			// Transport failures never abort the write; the store is
			// already the source of truth.
			p.logger.Warn("outbound command failed", "device_id", updated.ID, "error", cmdErr)
			p.appendEntry(ctx, &eventlog.Entry{
				Type:     eventlog.TypeError,
				DeviceID: updated.ID,
				Message:  fmt.Sprintf("command to %s failed: %v", updated.Name, cmdErr),
			})
		}
	}

	if p.trigger != nil {
		p.trigger.OnDeviceStateChanged(ctx, updated.ID, updated.State)
	}

	return nil
}

// appendEntry writes to the event log, logging rather than propagating
// failures. Losing a log entry must never fail a state write.
func (p *Pipeline) appendEntry(ctx context.Context, entry *eventlog.Entry) {
	if err := p.events.Append(ctx, entry); err != nil {
		p.logger.Error("appending event log entry", "type", string(entry.Type), "error", err)
	}
}

// ScenarioTriggered records a SCENARIO_TRIGGERED log entry. Implements
// the automation engine's recorder.
func (p *Pipeline) ScenarioTriggered(ctx context.Context, scenarioID, scenarioName string) {
	p.appendEntry(ctx, &eventlog.Entry{
		Type:    eventlog.TypeScenarioTriggered,
		Message: fmt.Sprintf("scenario %q triggered", scenarioName),
		Data:    map[string]any{"scenario_id": scenarioID},
	})
}

// EvaluationError records an ERROR log entry for a failed automation
// action or an aborted trigger chain.
func (p *Pipeline) EvaluationError(ctx context.Context, deviceID, message string) {
	p.appendEntry(ctx, &eventlog.Entry{
		Type:     eventlog.TypeError,
		DeviceID: deviceID,
		Message:  message,
	})
}

// TransportStatus records connection lifecycle changes as SYSTEM or
// ERROR entries. Implements the bridge's status recorder.
//
// Losing the broker also marks every device DISCONNECTED: individual
// devices may still be powered, but nothing can reach them.
func (p *Pipeline) TransportStatus(ctx context.Context, state bridge.State, detail string) {
	entryType := eventlog.TypeSystem
	if state == bridge.StateError {
		entryType = eventlog.TypeError
	}
	p.appendEntry(ctx, &eventlog.Entry{
		Type:    entryType,
		Message: detail,
	})

	if state == bridge.StateOffline || state == bridge.StateError {
		if err := p.devices.MarkAllDisconnected(ctx); err != nil {
			p.logger.Error("marking devices disconnected", "error", err)
		}
	}
}

// FactoryReset clears every store: devices, scenarios, and the event
// log. The single SYSTEM entry written afterwards is the first entry of
// the fresh log.
func (p *Pipeline) FactoryReset(ctx context.Context) error {
	if err := p.devices.Reset(ctx); err != nil {
		return fmt.Errorf("resetting devices: %w", err)
	}
	if err := p.scenarios.Reset(ctx); err != nil {
		return fmt.Errorf("resetting scenarios: %w", err)
	}
	if err := p.events.DeleteAll(ctx); err != nil {
		return fmt.Errorf("resetting event log: %w", err)
	}

	p.appendEntry(ctx, &eventlog.Entry{
		Type:    eventlog.TypeSystem,
		Message: "factory reset completed",
	})
	p.logger.Warn("factory reset completed")
	return nil
}
