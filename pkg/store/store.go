package store

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/braunma/hedgehog-topology-planner/pkg/models"
)

// Snapshot is the complete persisted state. Records are kept in insertion
// (and therefore ID) order so every read is deterministic.
type Snapshot struct {
	LastID int `yaml:"last_id"`

	Manufacturers        []*models.Manufacturer        `yaml:"manufacturers,omitempty"`
	DeviceTypes          []*models.DeviceType          `yaml:"device_types,omitempty"`
	ModuleTypes          []*models.ModuleType          `yaml:"module_types,omitempty"`
	DeviceTypeExtensions []*models.DeviceTypeExtension `yaml:"device_type_extensions,omitempty"`
	BreakoutOptions      []*models.BreakoutOption      `yaml:"breakout_options,omitempty"`

	Plans             []*models.Plan             `yaml:"plans,omitempty"`
	SwitchClasses     []*models.SwitchClass      `yaml:"switch_classes,omitempty"`
	SwitchPortZones   []*models.SwitchPortZone   `yaml:"switch_port_zones,omitempty"`
	ServerClasses     []*models.ServerClass      `yaml:"server_classes,omitempty"`
	ServerConnections []*models.ServerConnection `yaml:"server_connections,omitempty"`
	GenerationStates  []*models.GenerationState  `yaml:"generation_states,omitempty"`

	Devices    []*models.Device    `yaml:"devices,omitempty"`
	Interfaces []*models.Interface `yaml:"interfaces,omitempty"`
	Cables     []*models.Cable     `yaml:"cables,omitempty"`
}

// Store holds the planner state in memory and applies changes atomically
type Store struct {
	mu    sync.RWMutex
	state *Snapshot
}

// New returns an empty store
func New() *Store {
	return &Store{state: &Snapshot{}}
}

// Open loads a store from a YAML snapshot. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}

	snap := &Snapshot{}
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	return &Store{state: snap}, nil
}

// Save writes the committed state to path
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.state)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, path)
}

// Update runs fn against a private copy of the state and publishes the copy
// only when fn returns nil. Calls are serialized.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{s: s.state.clone(), writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.s
	return nil
}

// View runs fn against the committed state. fn must not mutate records.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&Tx{s: s.state})
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		LastID: s.LastID,

		Manufacturers: cloneAll(s.Manufacturers, nil),
		DeviceTypes: cloneAll(s.DeviceTypes, func(d *models.DeviceType) {
			d.Interfaces = slices.Clone(d.Interfaces)
		}),
		ModuleTypes: cloneAll(s.ModuleTypes, func(m *models.ModuleType) {
			m.Interfaces = slices.Clone(m.Interfaces)
		}),
		DeviceTypeExtensions: cloneAll(s.DeviceTypeExtensions, func(e *models.DeviceTypeExtension) {
			e.HedgehogRoles = slices.Clone(e.HedgehogRoles)
			e.SupportedBreakouts = slices.Clone(e.SupportedBreakouts)
		}),
		BreakoutOptions: cloneAll(s.BreakoutOptions, nil),

		Plans: cloneAll(s.Plans, nil),
		SwitchClasses: cloneAll(s.SwitchClasses, func(sc *models.SwitchClass) {
			sc.OverrideQuantity = cloneInt(sc.OverrideQuantity)
		}),
		SwitchPortZones: cloneAll(s.SwitchPortZones, nil),
		ServerClasses:   cloneAll(s.ServerClasses, nil),
		ServerConnections: cloneAll(s.ServerConnections, func(c *models.ServerConnection) {
			c.Rail = cloneInt(c.Rail)
		}),
		GenerationStates: cloneAll(s.GenerationStates, func(g *models.GenerationState) {
			if g.SwitchQuantities != nil {
				m := make(map[string]int, len(g.SwitchQuantities))
				for k, v := range g.SwitchQuantities {
					m[k] = v
				}
				g.SwitchQuantities = m
			}
		}),

		Devices:    cloneAll(s.Devices, nil),
		Interfaces: cloneAll(s.Interfaces, nil),
		Cables:     cloneAll(s.Cables, nil),
	}
}

// cloneAll copies every record; deep copies reference fields of the copy
func cloneAll[T any](in []*T, deep func(*T)) []*T {
	if in == nil {
		return nil
	}
	out := make([]*T, len(in))
	for i, rec := range in {
		cp := *rec
		if deep != nil {
			deep(&cp)
		}
		out[i] = &cp
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
