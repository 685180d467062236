package device

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Registry.
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

// Registry provides device and group management with a device cache.
//
// The cache holds every registered device (active or not) and is
// populated by RefreshCache at startup, then kept in sync by the
// registry's own writes. Groups are read through to the repository.
//
// All public methods are thread-safe. Returned values are deep copies.
type Registry struct {
	repo    Repository
	groups  GroupRepository
	cache   map[string]*Device
	loaded  bool
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a registry over the given repositories.
// SQLiteRepository satisfies both.
func NewRegistry(repo Repository, groups GroupRepository) *Registry {
	return &Registry{
		repo:   repo,
		groups: groups,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx, false)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}
	r.loaded = true

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID, active or not.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(d)
	return d, nil
}

// ListActiveDevices returns every active device ordered by name.
func (r *Registry) ListActiveDevices(ctx context.Context) ([]Device, error) {
	return r.filter(ctx, func(d *Device) bool { return d.IsActive })
}

// ListConnectable returns the devices that should hold a live connection
// (active and paired), keyed by ID.
func (r *Registry) ListConnectable(ctx context.Context) (map[string]Device, error) {
	devices, err := r.filter(ctx, (*Device).Connectable)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Device, len(devices))
	for _, d := range devices {
		out[d.ID] = d
	}
	return out, nil
}

// CapabilitiesFor returns the capability map for a registered device.
func (r *Registry) CapabilitiesFor(ctx context.Context, id string) (Capabilities, error) {
	d, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return CapabilitiesOf(d.Kind), nil
}

// Register records a device seen in a BLE advertisement. The address is
// the device ID; the kind and display name come from the advertised name.
// Re-registering a known address refreshes it and reactivates it.
func (r *Registry) Register(ctx context.Context, address, advertisedName string) (*Device, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	kind := KindFromName(advertisedName)
	model := kind.Model()
	name := DisplayName(advertisedName)
	if name == "" {
		name = addr
	}

	d := &Device{
		ID:       addr,
		Name:     name,
		Kind:     kind,
		Address:  addr,
		IsActive: true,
	}
	if model != "" {
		d.Model = &model
	}
	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	if err := r.repo.Upsert(ctx, d); err != nil {
		return nil, err
	}
	r.store(d)

	r.logger.Info("device registered", "id", d.ID, "kind", d.Kind, "name", d.Name)
	return d.DeepCopy(), nil
}

// CreateDevice persists a fully specified device.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if d.Kind == "" {
		d.Kind = KindGeneric
	}
	if err := ValidateDevice(d); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = d.Address
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}
	r.store(d)

	r.logger.Info("device created", "id", d.ID, "name", d.Name)
	return nil
}

// UpdateDevice updates name, kind, model and room.
func (r *Registry) UpdateDevice(ctx context.Context, d *Device) error {
	existing, err := r.GetDevice(ctx, d.ID)
	if err != nil {
		return err
	}
	d.Address = existing.Address
	if err := ValidateDevice(d); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	updated := existing
	updated.Name = d.Name
	updated.Kind = d.Kind
	updated.Model = d.Model
	updated.Room = d.Room
	updated.UpdatedAt = d.UpdatedAt
	r.store(updated)

	r.logger.Info("device updated", "id", d.ID, "name", d.Name)
	return nil
}

// SetPaired records the outcome of a pairing or unpairing flow.
func (r *Registry) SetPaired(ctx context.Context, id string, paired bool) error {
	if err := r.repo.SetPaired(ctx, id, paired); err != nil {
		return err
	}
	r.mutate(id, func(d *Device) { d.IsPaired = paired })

	r.logger.Info("device pairing changed", "id", id, "paired", paired)
	return nil
}

// DeleteDevice soft-deletes a device: it becomes inactive and unpaired and
// drops out of the connectable set.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	r.mutate(id, func(d *Device) {
		d.IsActive = false
		d.IsPaired = false
	})

	r.logger.Info("device deleted", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// ─── Groups ────────────────────────────────────────────────────────

// GetGroup retrieves a group by ID.
func (r *Registry) GetGroup(ctx context.Context, id string) (*Group, error) {
	return r.groups.GetGroup(ctx, id)
}

// ListGroups returns groups, optionally only active ones.
func (r *Registry) ListGroups(ctx context.Context, activeOnly bool) ([]Group, error) {
	return r.groups.ListGroups(ctx, activeOnly)
}

// CreateGroup validates and persists a new active group.
func (r *Registry) CreateGroup(ctx context.Context, name string, deviceIDs []string) (*Group, error) {
	g := &Group{
		ID:        uuid.NewString(),
		Name:      name,
		DeviceIDs: deviceIDs,
		IsActive:  true,
	}
	if err := ValidateGroup(g); err != nil {
		return nil, err
	}
	if err := r.groups.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	r.logger.Info("device group created", "id", g.ID, "name", g.Name, "members", len(g.DeviceIDs))
	return g, nil
}

// UpdateGroup validates and persists changes to a group.
func (r *Registry) UpdateGroup(ctx context.Context, g *Group) error {
	if err := ValidateGroup(g); err != nil {
		return err
	}
	return r.groups.UpdateGroup(ctx, g)
}

// DeleteGroup soft-deletes a group.
func (r *Registry) DeleteGroup(ctx context.Context, id string) error {
	if err := r.groups.DeactivateGroup(ctx, id); err != nil {
		return err
	}
	r.logger.Info("device group deleted", "id", id)
	return nil
}

// GroupMembers returns the active devices of an active group.
func (r *Registry) GroupMembers(ctx context.Context, groupID string) ([]Device, error) {
	g, err := r.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive {
		return nil, ErrGroupNotFound
	}
	return r.filter(ctx, func(d *Device) bool { return d.IsActive && g.Contains(d.ID) })
}

// ─── Cache helpers ─────────────────────────────────────────────────

func (r *Registry) filter(ctx context.Context, keep func(*Device) bool) ([]Device, error) {
	r.cacheMu.RLock()
	loaded := r.loaded
	var devices []Device
	if loaded {
		for _, d := range r.cache {
			if keep(d) {
				devices = append(devices, *d.DeepCopy())
			}
		}
	}
	r.cacheMu.RUnlock()

	if !loaded {
		all, err := r.repo.List(ctx, false)
		if err != nil {
			return nil, err
		}
		for i := range all {
			if keep(&all[i]) {
				devices = append(devices, all[i])
			}
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

func (r *Registry) store(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()
}

// mutate applies fn to a copy of the cached device and swaps it in.
func (r *Registry) mutate(id string, fn func(*Device)) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		fn(updated)
		r.cache[id] = updated
	}
}
