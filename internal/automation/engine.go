package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aurihome/aurihome-core/internal/device"
)

// DeviceReader is the slice of the device registry the engine needs.
// Conditions read device state fresh at each check, so writes made by
// earlier actions in the same run are visible to later blocks.
type DeviceReader interface {
	Get(ctx context.Context, id string) (*device.Device, error)
}

// StateApplier applies an action's payload to a device. The pipeline
// implements this: applying a delta persists it, logs it, and feeds it
// back into event-trigger evaluation.
type StateApplier interface {
	ApplyStateDelta(ctx context.Context, deviceID string, delta map[string]any) error
}

// Recorder receives engine events for the system log. May be nil.
type Recorder interface {
	ScenarioTriggered(ctx context.Context, scenarioID, scenarioName string)
	EvaluationError(ctx context.Context, deviceID, message string)
}

// maxTriggerDepth caps how many times a state change may cascade through
// event-triggered scenarios back into further state changes. A scenario
// that toggles an attribute it also reads would otherwise oscillate
// forever; past this depth the chain is aborted with an ERROR log entry.
const maxTriggerDepth = 5

type depthKey struct{}

func triggerDepth(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

func withTriggerDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// Engine evaluates scenarios against current device state and executes
// the resulting actions.
//
// Thread safety: RunManual and OnDeviceStateChanged are safe for
// concurrent use. Different scenarios evaluate concurrently; within one
// scenario, blocks and actions run strictly in order.
type Engine struct {
	registry *Registry
	devices  DeviceReader
	applier  StateApplier
	recorder Recorder
	logger   Logger

	wg sync.WaitGroup
}

// NewEngine creates a new scenario engine.
//
// Parameters:
//   - registry: Scenario registry for loading definitions
//   - devices: Device reader for condition evaluation
//   - applier: Sink for action payloads (the orchestration pipeline)
//   - logger: Logger instance (nil for no logging)
func NewEngine(registry *Registry, devices DeviceReader, applier StateApplier, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry: registry,
		devices:  devices,
		applier:  applier,
		logger:   logger,
	}
}

// SetRecorder wires the event log sink. Called once during startup,
// before any triggers fire.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// RunManual evaluates a single scenario by ID, synchronously.
//
// It reports false, without surfacing an error, when the scenario does
// not exist or is disabled. Scheduled triggers share this path.
func (e *Engine) RunManual(ctx context.Context, scenarioID string) bool {
	scn, err := e.registry.Get(ctx, scenarioID)
	if err != nil {
		if !errors.Is(err, ErrScenarioNotFound) {
			e.logger.Error("loading scenario", "scenario_id", scenarioID, "error", err)
		}
		return false
	}
	if !scn.Enabled {
		e.logger.Debug("scenario disabled, skipping", "scenario_id", scenarioID)
		return false
	}

	e.evaluate(withTriggerDepth(ctx, 1), scn)
	return true
}

// OnDeviceStateChanged evaluates every enabled EVENT scenario in
// response to a device state change. Firing is decided solely by each
// scenario's own conditions, independent of which device changed.
//
// Each scenario evaluates in its own goroutine so delayed actions in one
// scenario never block another. Evaluations outlive the caller's
// context; use WaitIdle to drain them during shutdown.
func (e *Engine) OnDeviceStateChanged(ctx context.Context, deviceID string, mergedState map[string]any) {
	depth := triggerDepth(ctx)
	if depth >= maxTriggerDepth {
		msg := fmt.Sprintf("trigger chain exceeded depth %d, aborting", maxTriggerDepth)
		e.logger.Error("trigger loop detected", "device_id", deviceID, "depth", depth)
		if e.recorder != nil {
			e.recorder.EvaluationError(ctx, deviceID, msg)
		}
		return
	}

	scenarios, err := e.registry.ListEnabledByTrigger(ctx, TriggerEvent)
	if err != nil {
		e.logger.Error("listing event scenarios", "error", err)
		return
	}
	if len(scenarios) == 0 {
		return
	}

	e.logger.Debug("evaluating event scenarios",
		"device_id", deviceID,
		"count", len(scenarios),
		"depth", depth,
		"state_keys", len(mergedState),
	)

	// Detach from the caller's cancellation but keep the trigger depth.
	runCtx := withTriggerDepth(context.WithoutCancel(ctx), depth+1)
	for i := range scenarios {
		scn := &scenarios[i]
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.evaluate(runCtx, scn)
		}()
	}
}

// WaitIdle blocks until all in-flight event evaluations have finished.
func (e *Engine) WaitIdle() {
	e.wg.Wait()
}

// evaluate runs a scenario's logic blocks in order and stamps LastRun
// afterwards, whether or not any block fired.
func (e *Engine) evaluate(ctx context.Context, scn *Scenario) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("scenario evaluation panic", "scenario_id", scn.ID, "panic", r)
		}
	}()

	triggered := false
	for _, block := range scn.Logic {
		results := make([]bool, len(block.Conditions))
		for i, cond := range block.Conditions {
			results[i] = e.checkCondition(ctx, cond)
		}

		actions := block.ElseActions
		if combineResults(block.ConditionOperator, results) {
			actions = block.ThenActions
			if !triggered && len(actions) > 0 {
				triggered = true
				if e.recorder != nil {
					e.recorder.ScenarioTriggered(ctx, scn.ID, scn.Name)
				}
			}
		}

		e.executeActions(ctx, scn.ID, actions)
	}

	if err := e.registry.TouchLastRun(ctx, scn.ID, time.Now().UTC()); err != nil {
		e.logger.Warn("updating last run", "scenario_id", scn.ID, "error", err)
	}

	e.logger.Debug("scenario evaluated", "scenario_id", scn.ID, "fired", triggered)
}

// checkCondition resolves the referenced device and applies the operator.
// Unknown devices evaluate to false.
func (e *Engine) checkCondition(ctx context.Context, cond Condition) bool {
	dev, err := e.devices.Get(ctx, cond.DeviceID)
	if err != nil {
		return false
	}
	return evaluateCondition(cond, dev)
}

// executeActions runs an action list in order. A delay blocks later
// actions in the same list. Failures are caught per action so one bad
// action never aborts its siblings.
func (e *Engine) executeActions(ctx context.Context, scenarioID string, actions []Action) {
	for _, action := range actions {
		if action.DelayMS > 0 {
			select {
			case <-time.After(time.Duration(action.DelayMS) * time.Millisecond):
			case <-ctx.Done():
				e.logger.Warn("action delay cancelled", "scenario_id", scenarioID, "device_id", action.DeviceID)
				return
			}
		}

		if err := e.applier.ApplyStateDelta(ctx, action.DeviceID, action.Payload); err != nil {
			e.logger.Warn("scenario action failed",
				"scenario_id", scenarioID,
				"device_id", action.DeviceID,
				"error", err,
			)
			if e.recorder != nil {
				e.recorder.EvaluationError(ctx, action.DeviceID,
					fmt.Sprintf("scenario %s: action on %s failed: %v", scenarioID, action.DeviceID, err))
			}
		}
	}
}
