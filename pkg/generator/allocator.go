package generator

import (
	"fmt"
	"sort"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// zonePlan is a zone with its logical ports expanded in allocation order
type zonePlan struct {
	zone  *models.SwitchPortZone
	class *models.SwitchClass
	ports []int
	slots []string
	speed int
}

// expandZone lists the logical interfaces of a zone. A breakout zone exposes
// LogicalPorts lanes per physical port, named E1/<port>/<lane>.
func expandZone(zone *models.SwitchPortZone, class *models.SwitchClass, breakout *models.BreakoutOption, nativeSpeed int) (*zonePlan, error) {
	ports, err := utils.ExpandPortSpec(zone.PortSpec)
	if err != nil {
		return nil, fmt.Errorf("zone %s/%s: %w", class.SwitchClassID, zone.ZoneName, err)
	}

	zp := &zonePlan{zone: zone, class: class, ports: ports, speed: nativeSpeed}
	if breakout == nil {
		for _, p := range ports {
			zp.slots = append(zp.slots, fmt.Sprintf("%s%d", constants.SwitchInterfacePrefix, p))
		}
		return zp, nil
	}

	zp.speed = breakout.LogicalSpeed
	for _, p := range ports {
		for lane := 1; lane <= breakout.LogicalPorts; lane++ {
			zp.slots = append(zp.slots, fmt.Sprintf("%s%d/%d", constants.SwitchInterfacePrefix, p, lane))
		}
	}
	return zp, nil
}

func (zp *zonePlan) capacity() int {
	return len(zp.slots)
}

// checkOverlap fails when two zones of the same switch class share a physical port
func checkOverlap(zones []*zonePlan) error {
	for i := range zones {
		for j := i + 1; j < len(zones); j++ {
			a, b := zones[i], zones[j]
			if a.class.ID != b.class.ID {
				continue
			}
			if shared := utils.IntersectPorts(a.ports, b.ports); len(shared) > 0 {
				return fmt.Errorf("%w: %s zones %s and %s share ports %s", ErrZoneOverlap,
					a.class.SwitchClassID, a.zone.ZoneName, b.zone.ZoneName, utils.CompactRange(shared))
			}
		}
	}
	return nil
}

// demand is one connection of a server class routed into a zone
type demand struct {
	server *models.ServerClass
	conn   *models.ServerConnection
	zone   *zonePlan
}

func (d demand) ports() int {
	if d.conn.PortsPerConnection < 1 {
		return 1
	}
	return d.conn.PortsPerConnection
}

func (d demand) rail() int {
	if d.conn.Rail == nil {
		return 0
	}
	return *d.conn.Rail
}

// RailKey identifies the rail bookkeeping of one server class inside one zone.
// Two zones of the same switch class never share a key.
type RailKey struct {
	ServerClassID string
	ZoneID        int
}

// railGroup tracks the rails routed into a zone and how many ports each has placed
type railGroup struct {
	rails  []int
	placed map[int]int
}

// railCache lives for a single generation run
type railCache map[RailKey]*railGroup

func (rc railCache) group(d demand, demands []demand) *railGroup {
	key := RailKey{ServerClassID: d.server.ServerClassID, ZoneID: d.zone.zone.ID}
	if g, ok := rc[key]; ok {
		return g
	}

	seen := map[int]bool{}
	g := &railGroup{placed: map[int]int{}}
	for _, other := range demands {
		if other.server.ID != d.server.ID || other.zone.zone.ID != d.zone.zone.ID {
			continue
		}
		if other.conn.Distribution != constants.DistributionRailOptimized {
			continue
		}
		if r := other.rail(); !seen[r] {
			seen[r] = true
			g.rails = append(g.rails, r)
		}
	}
	sort.Ints(g.rails)
	rc[key] = g
	return g
}

// pickSwitch returns the index of the switch instance that serves port p of
// server i. demands are all demands of the server's class.
func pickSwitch(d demand, demands []demand, i, p, q int, rails railCache) int {
	switch d.conn.Distribution {
	case constants.DistributionAlternating:
		return (i*d.ports() + p) % q

	case constants.DistributionRailOptimized:
		g := rails.group(d, demands)
		rail := d.rail()
		pos := sort.SearchInts(g.rails, rail)
		perRail := max(1, q/len(g.rails))
		base := (pos * perRail) % q
		n := g.placed[rail]
		g.placed[rail]++
		return (base + n%perRail) % q

	default:
		return i % q
	}
}

type cursorKey struct {
	zoneID    int
	switchIdx int
}

// allocator hands out the logical ports of each zone in ascending order, with
// one cursor per zone per switch instance. Ports are never reused in a run.
type allocator struct {
	cursors map[cursorKey]int
}

func newAllocator() *allocator {
	return &allocator{cursors: map[cursorKey]int{}}
}

func (a *allocator) next(zp *zonePlan, switchIdx int) (string, bool) {
	key := cursorKey{zoneID: zp.zone.ID, switchIdx: switchIdx}
	n := a.cursors[key]
	if n >= zp.capacity() {
		return "", false
	}
	a.cursors[key] = n + 1
	return zp.slots[n], true
}
