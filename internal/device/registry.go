package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// including topic-to-device resolution on the transport hot path.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-updating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	byTopic map[string]string  // Topic -> device ID index
	cacheMu sync.RWMutex       // Protects cache and byTopic
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		cache:   make(map[string]*Device),
		byTopic: make(map[string]string),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	r.byTopic = make(map[string]string)
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
		if d.Topic != nil {
			r.byTopic[*d.Topic] = d.ID
		}
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheDevice(device)
	return device, nil
}

// GetByTopic resolves the device bound to an MQTT base topic.
// Returns ErrDeviceNotFound if no device is bound to the topic.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetByTopic(ctx context.Context, topic string) (*Device, error) {
	r.cacheMu.RLock()
	id, ok := r.byTopic[topic]
	var cached *Device
	if ok {
		cached = r.cache[id]
	}
	r.cacheMu.RUnlock()

	if cached != nil {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByTopic(ctx, topic)
	if err != nil {
		return nil, err
	}

	r.cacheDevice(device)
	return device, nil
}

// List retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// ListByRoom retrieves all devices in a specific room.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListByRoom(ctx context.Context, room string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.Room == room {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, room)
}

// ListByType retrieves all devices of a specific type.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListByType(ctx context.Context, deviceType DeviceType) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.Type == deviceType {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByType(ctx, deviceType)
}

// Create creates a new device.
// It validates the device, generates an ID if needed, defaults the
// status to ONLINE, and persists it.
func (r *Registry) Create(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if device.Status == "" {
		device.Status = StatusOnline
	}
	if device.State == nil {
		device.State = State{}
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheDevice(device)

	r.logger.Info("device created", "id", device.ID, "name", device.Name, "type", device.Type)
	return nil
}

// Update updates an existing device.
// It validates the device and persists the changes.
func (r *Registry) Update(ctx context.Context, device *Device) error {
	existing, err := r.Get(ctx, device.ID)
	if err != nil {
		return err
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if existing.Topic != nil {
		delete(r.byTopic, *existing.Topic)
	}
	r.cache[device.ID] = device.DeepCopy()
	if device.Topic != nil {
		r.byTopic[*device.Topic] = device.ID
	}
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	return nil
}

// Delete removes a device.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok && cached.Topic != nil {
		delete(r.byTopic, *cached.Topic)
	}
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// ApplyStateDelta merges a state delta into a device's state and
// advances its last seen timestamp. Attributes not present in the
// delta are preserved. Applying the same delta twice yields the same
// state.
//
// The caller is responsible for validating or filtering the delta
// against the device's type beforehand (ValidateState or FilterState).
//
// Returns the updated device as a deep copy.
func (r *Registry) ApplyStateDelta(ctx context.Context, id string, delta State) (*Device, error) {
	now := time.Now().UTC()

	if err := r.repo.MergeState(ctx, id, delta, now); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if ok {
		// Atomic replacement: merge into a copy, then swap.
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = State{}
		}
		for k, v := range delta {
			updated.State[k] = deepCopyValue(v)
		}
		updated.LastSeen = now
		updated.UpdatedAt = now
		r.cache[id] = updated
		cached = updated
	}
	r.cacheMu.Unlock()

	if !ok {
		// Cache miss: load the merged row.
		device, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.cacheDevice(device)
		return device, nil
	}

	r.logger.Debug("device state merged", "id", id, "attributes", len(delta))
	return cached.DeepCopy(), nil
}

// SetStatus updates the connectivity status of a device and advances
// its last seen timestamp.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := r.repo.UpdateStatus(ctx, id, status, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Status = status
		updated.LastSeen = now
		updated.UpdatedAt = now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device status updated", "id", id, "status", status)
	return nil
}

// MarkAllDisconnected sets every device's status to DISCONNECTED.
// Called when the transport link to the broker is lost: individual
// devices may still be powered, but nothing can reach them.
func (r *Registry) MarkAllDisconnected(ctx context.Context) error {
	devices, err := r.List(ctx)
	if err != nil {
		return err
	}

	for i := range devices {
		if devices[i].Status == StatusDisconnected {
			continue
		}
		if err := r.SetStatus(ctx, devices[i].ID, StatusDisconnected); err != nil {
			return err
		}
	}

	return nil
}

// Reset removes every device. Used by factory reset.
func (r *Registry) Reset(ctx context.Context) error {
	if err := r.repo.DeleteAll(ctx); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Device)
	r.byTopic = make(map[string]string)
	r.cacheMu.Unlock()

	r.logger.Warn("device registry reset")
	return nil
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// cacheDevice stores a deep copy of a device in the cache.
func (r *Registry) cacheDevice(device *Device) {
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	if device.Topic != nil {
		r.byTopic[*device.Topic] = device.ID
	}
	r.cacheMu.Unlock()
}
