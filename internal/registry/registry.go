package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// legal connection state transitions; devices cycle indefinitely, there is
// no terminal state.
var transitions = map[model.ConnectionState][]model.ConnectionState{
	model.StateDisconnected: {model.StateConnecting},
	model.StateConnecting:   {model.StateConnected, model.StateDisconnected},
	model.StateConnected:    {model.StateDegraded, model.StateDisconnected},
	model.StateDegraded:     {model.StateConnected, model.StateDisconnected},
}

// StateChangeFunc observes committed state transitions.
type StateChangeFunc func(device model.Device, from, to model.ConnectionState)

// Registry owns device identity and connection state bookkeeping. It
// performs no I/O; the poller drives all state transitions. Administrative
// mutations take the single writer lock, readers always see a consistent
// snapshot.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*model.Device
	byAddr   map[string]string // ip -> device id
	retired  map[string]string // deregistered id -> attribute fingerprint
	onChange StateChangeFunc
}

func New() *Registry {
	return &Registry{
		devices: make(map[string]*model.Device),
		byAddr:  make(map[string]string),
		retired: make(map[string]string),
	}
}

// OnStateChange installs the transition observer. Must be called before the
// poller starts.
func (r *Registry) OnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register adds a device and returns its id. A missing id is generated.
// Fails with DuplicateDevice if the id or address is already present, or if
// a retired id is reused with different attributes.
func (r *Registry) Register(d *model.Device) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		d.ID = fmt.Sprintf("zk-%s", uuid.New().String()[:8])
	}
	if _, exists := r.devices[d.ID]; exists {
		return "", apperrors.DuplicateDevice(d.ID)
	}
	if other, exists := r.byAddr[d.IP]; exists {
		return "", apperrors.DuplicateDevice(other)
	}
	if fp, wasRetired := r.retired[d.ID]; wasRetired && fp != d.Fingerprint() {
		return "", apperrors.DuplicateDevice(d.ID)
	}

	now := time.Now()
	d.State = model.StateDisconnected
	d.CreatedAt = now
	d.UpdatedAt = now

	dev := *d
	r.devices[d.ID] = &dev
	r.byAddr[d.IP] = d.ID
	delete(r.retired, d.ID)
	return d.ID, nil
}

// Deregister removes a device. The id is retired: it may only come back with
// identical attributes.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return apperrors.UnknownDevice(id)
	}
	delete(r.devices, id)
	delete(r.byAddr, dev.IP)
	r.retired[id] = dev.Fingerprint()
	return nil
}

// Get returns a snapshot copy of the device.
func (r *Registry) Get(id string) (model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[id]
	if !ok {
		return model.Device{}, apperrors.UnknownDevice(id)
	}
	return *dev, nil
}

// List returns snapshot copies of all devices.
func (r *Registry) List() []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, *dev)
	}
	return out
}

// SetState applies a poller-observed transition. Setting the current state
// again is a no-op. Illegal transitions are rejected.
func (r *Registry) SetState(id string, next model.ConnectionState) error {
	r.mu.Lock()
	dev, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return apperrors.UnknownDevice(id)
	}

	from := dev.State
	if from == next {
		r.mu.Unlock()
		return nil
	}
	if !legal(from, next) {
		r.mu.Unlock()
		return apperrors.NewBadRequest(
			fmt.Sprintf("illegal transition %s -> %s for device %s", from, next, id), nil)
	}

	dev.State = next
	dev.UpdatedAt = time.Now()
	snapshot := *dev
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange(snapshot, from, next)
	}
	return nil
}

// MarkSynced advances the device's last-sync watermark. Called by the poller
// only after all buffered entries were handed to the classifier.
func (r *Registry) MarkSynced(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return apperrors.UnknownDevice(id)
	}
	t := at
	dev.LastSync = &t
	dev.UpdatedAt = time.Now()
	return nil
}

// SetUserCount updates the registered-user count reported by a sync.
func (r *Registry) SetUserCount(id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[id]
	if !ok {
		return apperrors.UnknownDevice(id)
	}
	dev.UserCount = n
	dev.UpdatedAt = time.Now()
	return nil
}

func legal(from, to model.ConnectionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
