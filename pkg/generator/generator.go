package generator

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

const (
	switchNameWidth = 2
	serverNameWidth = 3
)

// Options configure a Generator
type Options struct {
	// Clock stamps GenerationState; defaults to the real clock
	Clock clockwork.Clock
	// Registerer receives the generator metrics; nil leaves them unregistered
	Registerer prometheus.Registerer
}

// Generator expands plans into devices, interfaces and cables
type Generator struct {
	store   *store.Store
	logger  *utils.Logger
	clock   clockwork.Clock
	metrics *Metrics
}

// New creates a generator
func New(s *store.Store, logger *utils.Logger, opts Options) *Generator {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		store:   s,
		logger:  logger,
		clock:   clock,
		metrics: NewMetrics(opts.Registerer),
	}
}

// Summary describes one generation run
type Summary struct {
	PlanID      int
	Plan        string
	GeneratedAt time.Time
	Devices     int
	Interfaces  int
	Cables      int
	// Switches maps switch_class_id to the number of instances generated
	Switches map[string]int
	// Servers maps server_class_id to the number of instances generated
	Servers map[string]int
}

// GenerateByName generates the plan called name
func (g *Generator) GenerateByName(name string) (*Summary, error) {
	var planID int
	err := g.store.View(func(tx *store.Tx) error {
		p := tx.Plan(name)
		if p == nil {
			return fmt.Errorf("%w: %q", ErrPlanNotFound, name)
		}
		planID = p.ID
		return nil
	})
	if err != nil {
		g.metrics.GenerationFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	return g.Generate(planID)
}

// Generate replaces the generated inventory of one plan. Either every device,
// interface and cable is written or, on error, nothing changes. Generated
// records of other plans are never touched.
func (g *Generator) Generate(planID int) (*Summary, error) {
	start := g.clock.Now()

	var summary *Summary
	err := g.store.Update(func(tx *store.Tx) error {
		plan := tx.PlanByID(planID)
		if plan == nil {
			return fmt.Errorf("%w: id %d", ErrPlanNotFound, planID)
		}

		r, err := newRun(tx, plan)
		if err != nil {
			return err
		}
		summary, err = r.execute(g.clock.Now().UTC())
		return err
	})
	g.metrics.GenerationDuration.Observe(g.clock.Since(start).Seconds())

	if err != nil {
		g.metrics.GenerationFailures.WithLabelValues(failureReason(err)).Inc()
		g.logger.Error("Generation failed for plan %d", err, planID)
		return nil, err
	}

	g.metrics.GeneratedCables.WithLabelValues(summary.Plan).Add(float64(summary.Cables))
	g.logger.Success("Generated plan %s: %d devices, %d interfaces, %d cables",
		summary.Plan, summary.Devices, summary.Interfaces, summary.Cables)
	for _, id := range utils.SortedKeys(summary.Switches) {
		g.logger.Debug("  %s: %d switches", id, summary.Switches[id])
	}
	return summary, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrZoneExhausted):
		return "zone_exhausted"
	case errors.Is(err, ErrZoneOverlap):
		return "zone_overlap"
	case errors.Is(err, ErrPlanNotFound):
		return "plan_not_found"
	}
	return "other"
}

// run is the state of a single generation. Nothing in it outlives Generate.
type run struct {
	tx   *store.Tx
	plan *models.Plan

	switchClasses []*models.SwitchClass
	serverClasses []*models.ServerClass
	zones         []*zonePlan
	// demands per server class id, in connection_id order
	demands  map[int][]demand
	quantity map[int]int

	switches map[int][]*models.Device
	rails    railCache
	alloc    *allocator

	devices, interfaces, cables int
}

func newRun(tx *store.Tx, plan *models.Plan) (*run, error) {
	r := &run{
		tx:            tx,
		plan:          plan,
		switchClasses: tx.SwitchClasses(plan.ID),
		serverClasses: tx.ServerClasses(plan.ID),
		demands:       map[int][]demand{},
		quantity:      map[int]int{},
		switches:      map[int][]*models.Device{},
		rails:         railCache{},
		alloc:         newAllocator(),
	}

	byID := map[int]*zonePlan{}
	for _, sc := range r.switchClasses {
		native := 0
		if ext := tx.ExtensionByID(sc.DeviceTypeExtensionID); ext != nil {
			native = ext.NativeSpeed
		}
		for _, z := range tx.Zones(sc.ID) {
			var bo *models.BreakoutOption
			if z.BreakoutOptionID != 0 {
				bo = tx.BreakoutOptionByID(z.BreakoutOptionID)
			}
			zp, err := expandZone(z, sc, bo, native)
			if err != nil {
				return nil, err
			}
			r.zones = append(r.zones, zp)
			byID[z.ID] = zp
		}
	}
	if err := checkOverlap(r.zones); err != nil {
		return nil, err
	}

	for _, sc := range r.serverClasses {
		conns := tx.Connections(sc.ID)
		sort.SliceStable(conns, func(i, j int) bool { return conns[i].ConnectionID < conns[j].ConnectionID })
		for _, c := range conns {
			zp, ok := byID[c.TargetZoneID]
			if !ok {
				return nil, fmt.Errorf("plan %s: connection %s/%s targets zone %d outside the plan",
					plan.Name, sc.ServerClassID, c.ConnectionID, c.TargetZoneID)
			}
			r.demands[sc.ID] = append(r.demands[sc.ID], demand{server: sc, conn: c, zone: zp})
		}
	}

	for _, sc := range r.switchClasses {
		sc.CalculatedQuantity = r.calculateQuantity(sc)
		r.quantity[sc.ID] = sc.EffectiveQuantity()
	}
	return r, nil
}

// calculateQuantity returns the smallest switch count whose zones can hold
// every port routed to them, starting from ceil(demand/capacity) per zone.
// mclag pairs are rounded up to an even count; every class gets at least one.
func (r *run) calculateQuantity(sc *models.SwitchClass) int {
	step := 1
	lower := 1
	if sc.MCLAGPair {
		step = 2
		lower = 2
	}

	upper := 0
	for _, zp := range r.zones {
		if zp.class.ID != sc.ID {
			continue
		}
		need := 0
		for _, srv := range r.serverClasses {
			for _, d := range r.demands[srv.ID] {
				if d.zone == zp {
					need += srv.Quantity * d.ports()
				}
			}
		}
		if need == 0 || zp.capacity() == 0 {
			continue
		}
		lower = max(lower, (need+zp.capacity()-1)/zp.capacity())
		upper = max(upper, need)
	}
	if lower%step != 0 {
		lower++
	}

	for q := lower; q <= upper; q += step {
		if r.fits(sc, q) {
			return q
		}
	}
	return lower
}

// fits replays the switch choice of every port targeting sc with q switches
func (r *run) fits(sc *models.SwitchClass, q int) bool {
	load := map[cursorKey]int{}
	rails := railCache{}
	for _, srv := range r.serverClasses {
		demands := r.demands[srv.ID]
		for i := 0; i < srv.Quantity; i++ {
			for _, d := range demands {
				if d.zone.class.ID != sc.ID {
					continue
				}
				for p := 0; p < d.ports(); p++ {
					key := cursorKey{zoneID: d.zone.zone.ID, switchIdx: pickSwitch(d, demands, i, p, q, rails)}
					load[key]++
					if load[key] > d.zone.capacity() {
						return false
					}
				}
			}
		}
	}
	return true
}

func (r *run) execute(now time.Time) (*Summary, error) {
	tx := r.tx
	tx.PurgeGenerated(r.plan.ID)

	summary := &Summary{
		PlanID:      r.plan.ID,
		Plan:        r.plan.Name,
		GeneratedAt: now,
		Switches:    map[string]int{},
		Servers:     map[string]int{},
	}

	for _, sc := range r.switchClasses {
		deviceTypeID := 0
		if ext := tx.ExtensionByID(sc.DeviceTypeExtensionID); ext != nil {
			deviceTypeID = ext.DeviceTypeID
		}
		q := r.quantity[sc.ID]
		for idx := 0; idx < q; idx++ {
			d := &models.Device{
				PlanID:       r.plan.ID,
				Name:         utils.DeviceName(sc.SwitchClassID, idx, switchNameWidth),
				Kind:         constants.DeviceKindSwitch,
				Role:         sc.HedgehogRole,
				DeviceTypeID: deviceTypeID,
				ClassID:      sc.SwitchClassID,
				Index:        idx,
			}
			tx.AddDevice(d)
			r.switches[sc.ID] = append(r.switches[sc.ID], d)
			r.devices++
		}
		summary.Switches[sc.SwitchClassID] = q
	}

	for _, sc := range r.serverClasses {
		for i := 0; i < sc.Quantity; i++ {
			server := &models.Device{
				PlanID:       r.plan.ID,
				Name:         utils.DeviceName(sc.ServerClassID, i, serverNameWidth),
				Kind:         constants.DeviceKindServer,
				Role:         constants.DeviceKindServer,
				DeviceTypeID: sc.ServerDeviceTypeID,
				ClassID:      sc.ServerClassID,
				Index:        i,
			}
			tx.AddDevice(server)
			r.devices++

			if err := r.connectServer(sc, server, i); err != nil {
				return nil, err
			}
		}
		summary.Servers[sc.ServerClassID] = sc.Quantity
	}

	tx.PutGenerationState(&models.GenerationState{
		PlanID:           r.plan.ID,
		GeneratedAt:      now,
		DeviceCount:      r.devices,
		InterfaceCount:   r.interfaces,
		CableCount:       r.cables,
		SwitchQuantities: summary.Switches,
	})

	summary.Devices = r.devices
	summary.Interfaces = r.interfaces
	summary.Cables = r.cables
	return summary, nil
}

// connectServer cables every port of every connection of server i
func (r *run) connectServer(sc *models.ServerClass, server *models.Device, i int) error {
	demands := r.demands[sc.ID]
	for _, d := range demands {
		switches := r.switches[d.zone.class.ID]
		q := len(switches)
		var templates []models.InterfaceTemplate
		if mt := r.tx.ModuleTypeByID(d.conn.NICModuleTypeID); mt != nil {
			templates = mt.Interfaces
		}

		for p := 0; p < d.ports(); p++ {
			exhausted := &ZoneExhaustedError{
				Plan:        r.plan.Name,
				SwitchClass: d.zone.class.SwitchClassID,
				Zone:        d.zone.zone.ZoneName,
				ServerClass: sc.ServerClassID,
				Server:      server.Name,
				Connection:  d.conn.ConnectionID,
				Capacity:    d.zone.capacity(),
			}
			if q == 0 {
				exhausted.Capacity = 0
				return exhausted
			}

			sw := switches[pickSwitch(d, demands, i, p, q, r.rails)]
			port, ok := r.alloc.next(d.zone, sw.Index)
			if !ok {
				exhausted.Switch = sw.Name
				return exhausted
			}

			nic := d.conn.PortIndex + p
			serverPort := fmt.Sprintf("%s-p%d", d.conn.ConnectionID, nic)
			if nic < len(templates) {
				serverPort = d.conn.ConnectionID + "-" + templates[nic].Name
			}

			a := &models.Interface{PlanID: r.plan.ID, DeviceID: server.ID, Name: serverPort, Speed: d.conn.Speed}
			r.tx.AddInterface(a)
			speed := d.zone.speed
			if speed == 0 {
				speed = d.conn.Speed
			}
			b := &models.Interface{PlanID: r.plan.ID, DeviceID: sw.ID, Name: port, Speed: speed, Zone: d.zone.zone.ZoneName}
			r.tx.AddInterface(b)
			r.interfaces += 2

			cable := &models.Cable{
				PlanID:       r.plan.ID,
				AInterfaceID: a.ID,
				BInterfaceID: b.ID,
				Type:         utils.CableTypeForSpeed(d.conn.Speed),
				Label:        server.Name + ":" + serverPort,
			}
			r.tx.AddCable(cable)
			a.CableID = cable.ID
			b.CableID = cable.ID
			r.cables++
		}
	}
	return nil
}
