package schema

import (
	"regexp"
	"strings"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

var caseIDPattern = regexp.MustCompile(constants.CaseIDPattern)

// Validate checks a raw case document and returns its typed form. Legacy "id" keys on
// switch_classes and server_classes entries are normalized in place. On failure the
// returned *ValidationError lists every issue found, not just the first.
func Validate(raw map[string]interface{}) (*Case, error) {
	v := &validator{
		doc:           &Case{},
		manufacturers: map[string]int{},
		deviceTypes:   map[string]int{},
		extensions:    map[string]int{},
		breakouts:     map[string]int{},
		moduleTypes:   map[string]int{},
		switchClasses: map[string]int{},
		zones:         map[ZoneRef]int{},
		serverClasses: map[string]int{},
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	v.meta(raw)
	v.plan(raw)
	v.referenceData(raw)
	v.switchClassList(raw)
	v.zoneList(raw)
	v.serverClassList(raw)
	v.connectionList(raw)
	v.expected(raw)

	if err := v.build(); err != nil {
		return nil, err
	}
	return v.doc, nil
}

type validator struct {
	issueCollector
	doc *Case

	// case-local id -> index into the matching doc slice
	manufacturers map[string]int
	deviceTypes   map[string]int
	extensions    map[string]int
	breakouts     map[string]int
	moduleTypes   map[string]int
	switchClasses map[string]int
	zones         map[ZoneRef]int
	serverClasses map[string]int
}

// register records id in seen and reports whether it was new
func (v *validator) register(seen map[string]int, id, path string, idx int) bool {
	if id == "" {
		return false
	}
	if _, dup := seen[id]; dup {
		v.add(constants.CodeInvalidValue, path, "duplicate id %q", id)
		return false
	}
	seen[id] = idx
	return true
}

// ref resolves a required case-local reference
func (v *validator) ref(item map[string]interface{}, key, path, kind string, known map[string]int, required bool) string {
	id := v.str(item, key, path, required)
	if id == "" {
		return ""
	}
	if _, ok := known[id]; !ok {
		v.add(constants.CodeUnknownReference, join(path, key), "%s %q is not declared in this case", kind, id)
		return ""
	}
	return id
}

func (v *validator) meta(raw map[string]interface{}) {
	m, ok := v.mapping(raw, "meta", "", true)
	if !ok {
		return
	}

	caseID := v.str(m, "case_id", "meta", true)
	if caseID != "" && !caseIDPattern.MatchString(caseID) {
		v.addHint(constants.CodeInvalidFormat, "meta.case_id", "use lowercase letters, digits and underscores",
			"case_id %q does not match %s", caseID, constants.CaseIDPattern)
	}

	managedBy := v.str(m, "managed_by", "meta", true)
	if managedBy != "" && managedBy != constants.ManagedByYAML {
		v.add(constants.CodeInvalidValue, "meta.managed_by", "managed_by must be %q, got %q", constants.ManagedByYAML, managedBy)
	}

	v.doc.Meta = Meta{
		CaseID:    caseID,
		Name:      v.str(m, "name", "meta", true),
		Version:   v.integer(m, "version", "meta", true, 0),
		ManagedBy: managedBy,
	}
}

func (v *validator) plan(raw map[string]interface{}) {
	m, ok := v.mapping(raw, "plan", "", true)
	if !ok {
		return
	}
	status := v.str(m, "status", "plan", true)
	v.enum(status, constants.PlanStatuses, "plan.status")

	v.doc.Plan = PlanSpec{
		Name:        v.str(m, "name", "plan", true),
		Status:      status,
		Description: v.str(m, "description", "plan", false),
	}
}

func (v *validator) referenceData(raw map[string]interface{}) {
	rd, ok := v.mapping(raw, "reference_data", "", false)
	if !ok {
		return
	}
	const base = "reference_data"

	if list, ok := v.list(rd, "manufacturers", base, false); ok {
		p := join(base, "manufacturers")
		for i, item := range v.items(list, p) {
			if item == nil {
				continue
			}
			ip := index(p, i)
			spec := ManufacturerSpec{
				ID:   v.str(item, "id", ip, true),
				Name: v.str(item, "name", ip, true),
				Slug: v.str(item, "slug", ip, false),
			}
			if spec.Slug == "" {
				spec.Slug = utils.Slugify(spec.Name)
			}
			if v.register(v.manufacturers, spec.ID, join(ip, "id"), len(v.doc.ReferenceData.Manufacturers)) {
				v.doc.ReferenceData.Manufacturers = append(v.doc.ReferenceData.Manufacturers, spec)
			}
		}
	}

	if list, ok := v.list(rd, "device_types", base, false); ok {
		p := join(base, "device_types")
		for i, item := range v.items(list, p) {
			if item == nil {
				continue
			}
			ip := index(p, i)
			spec := DeviceTypeSpec{
				ID:           v.str(item, "id", ip, true),
				Manufacturer: v.ref(item, "manufacturer", ip, "manufacturer", v.manufacturers, true),
				Model:        v.str(item, "model", ip, true),
				Slug:         v.str(item, "slug", ip, false),
				UHeight:      v.integer(item, "u_height", ip, false, 1),
				Interfaces:   v.interfaceTemplates(item, ip),
			}
			if spec.Slug == "" {
				spec.Slug = utils.Slugify(spec.Model)
			}
			v.atLeast(spec.UHeight, 0, join(ip, "u_height"))
			if v.register(v.deviceTypes, spec.ID, join(ip, "id"), len(v.doc.ReferenceData.DeviceTypes)) {
				v.doc.ReferenceData.DeviceTypes = append(v.doc.ReferenceData.DeviceTypes, spec)
			}
		}
	}

	if list, ok := v.list(rd, "device_type_extensions", base, false); ok {
		p := join(base, "device_type_extensions")
		for i, item := range v.items(list, p) {
			if item == nil {
				continue
			}
			ip := index(p, i)
			spec := ExtensionSpec{
				ID:                  v.str(item, "id", ip, true),
				DeviceType:          v.ref(item, "device_type", ip, "device type", v.deviceTypes, true),
				MCLAGCapable:        v.boolean(item, "mclag_capable", ip, false),
				HedgehogRoles:       v.strList(item, "hedgehog_roles", ip),
				NativeSpeed:         v.integer(item, "native_speed", ip, false, 0),
				UplinkPorts:         v.integer(item, "uplink_ports", ip, false, 0),
				SupportedBreakouts:  v.strList(item, "supported_breakouts", ip),
				HedgehogProfileName: v.str(item, "hedgehog_profile_name", ip, false),
			}
			for j, role := range spec.HedgehogRoles {
				v.enum(role, constants.HedgehogRoles, index(join(ip, "hedgehog_roles"), j))
			}
			v.atLeast(spec.NativeSpeed, 0, join(ip, "native_speed"))
			v.atLeast(spec.UplinkPorts, 0, join(ip, "uplink_ports"))
			if v.register(v.extensions, spec.ID, join(ip, "id"), len(v.doc.ReferenceData.DeviceTypeExtensions)) {
				v.doc.ReferenceData.DeviceTypeExtensions = append(v.doc.ReferenceData.DeviceTypeExtensions, spec)
			}
		}
	}

	if list, ok := v.list(rd, "breakout_options", base, false); ok {
		p := join(base, "breakout_options")
		for i, item := range v.items(list, p) {
			if item == nil {
				continue
			}
			ip := index(p, i)
			spec := BreakoutSpec{
				ID:           v.str(item, "id", ip, true),
				BreakoutID:   v.str(item, "breakout_id", ip, true),
				FromSpeed:    v.integer(item, "from_speed", ip, true, 1),
				LogicalPorts: v.integer(item, "logical_ports", ip, true, 1),
				LogicalSpeed: v.integer(item, "logical_speed", ip, true, 1),
				OpticType:    v.str(item, "optic_type", ip, false),
			}
			v.atLeast(spec.FromSpeed, 1, join(ip, "from_speed"))
			v.atLeast(spec.LogicalPorts, 1, join(ip, "logical_ports"))
			v.atLeast(spec.LogicalSpeed, 1, join(ip, "logical_speed"))
			if v.register(v.breakouts, spec.ID, join(ip, "id"), len(v.doc.ReferenceData.BreakoutOptions)) {
				v.doc.ReferenceData.BreakoutOptions = append(v.doc.ReferenceData.BreakoutOptions, spec)
			}
		}
	}

	if list, ok := v.list(rd, "module_types", base, false); ok {
		p := join(base, "module_types")
		for i, item := range v.items(list, p) {
			if item == nil {
				continue
			}
			ip := index(p, i)
			spec := ModuleTypeSpec{
				ID:           v.str(item, "id", ip, true),
				Manufacturer: v.ref(item, "manufacturer", ip, "manufacturer", v.manufacturers, true),
				Model:        v.str(item, "model", ip, true),
				Interfaces:   v.interfaceTemplates(item, ip),
			}
			if v.register(v.moduleTypes, spec.ID, join(ip, "id"), len(v.doc.ReferenceData.ModuleTypes)) {
				v.doc.ReferenceData.ModuleTypes = append(v.doc.ReferenceData.ModuleTypes, spec)
			}
		}
	}
}

func (v *validator) switchClassList(raw map[string]interface{}) {
	list, ok := v.list(raw, "switch_classes", "", true)
	if !ok {
		return
	}
	for i, item := range v.items(list, "switch_classes") {
		if item == nil {
			continue
		}
		ip := index("switch_classes", i)
		normalizeAlias(item, "switch_class_id")

		spec := SwitchClassSpec{
			SwitchClassID:        v.str(item, "switch_class_id", ip, true),
			Fabric:               v.str(item, "fabric", ip, true),
			HedgehogRole:         v.str(item, "hedgehog_role", ip, true),
			DeviceTypeExtension:  v.ref(item, "device_type_extension", ip, "device type extension", v.extensions, true),
			UplinkPortsPerSwitch: v.integer(item, "uplink_ports_per_switch", ip, false, 0),
			MCLAGPair:            v.boolean(item, "mclag_pair", ip, false),
			OverrideQuantity:     v.optInt(item, "override_quantity", ip, false),
		}
		v.enum(spec.Fabric, constants.Fabrics, join(ip, "fabric"))
		v.enum(spec.HedgehogRole, constants.HedgehogRoles, join(ip, "hedgehog_role"))
		v.atLeast(spec.UplinkPortsPerSwitch, 0, join(ip, "uplink_ports_per_switch"))
		if spec.OverrideQuantity != nil {
			v.atLeast(*spec.OverrideQuantity, 0, join(ip, "override_quantity"))
		}

		if spec.DeviceTypeExtension != "" {
			ext := v.doc.ReferenceData.DeviceTypeExtensions[v.extensions[spec.DeviceTypeExtension]]
			if spec.HedgehogRole != "" && len(ext.HedgehogRoles) > 0 && !utils.Contains(ext.HedgehogRoles, spec.HedgehogRole) {
				v.add(constants.CodeInvalidValue, join(ip, "hedgehog_role"),
					"role %q is not supported by device type extension %q (supports %s)",
					spec.HedgehogRole, ext.ID, strings.Join(ext.HedgehogRoles, ", "))
			}
			if spec.MCLAGPair && !ext.MCLAGCapable {
				v.add(constants.CodeInvalidValue, join(ip, "mclag_pair"),
					"device type extension %q is not mclag_capable", ext.ID)
			}
		}

		if v.register(v.switchClasses, spec.SwitchClassID, join(ip, "switch_class_id"), len(v.doc.SwitchClasses)) {
			v.doc.SwitchClasses = append(v.doc.SwitchClasses, spec)
		}
	}
}

func (v *validator) zoneList(raw map[string]interface{}) {
	list, ok := v.list(raw, "switch_port_zones", "", false)
	if !ok {
		return
	}
	paths := map[ZoneRef]string{}

	for i, item := range v.items(list, "switch_port_zones") {
		if item == nil {
			continue
		}
		ip := index("switch_port_zones", i)

		spec := ZoneSpec{
			SwitchClass:        v.ref(item, "switch_class", ip, "switch class", v.switchClasses, true),
			ZoneName:           v.str(item, "zone_name", ip, true),
			ZoneType:           v.str(item, "zone_type", ip, true),
			PortSpec:           v.str(item, "port_spec", ip, true),
			BreakoutOption:     v.ref(item, "breakout_option", ip, "breakout option", v.breakouts, false),
			AllocationStrategy: v.str(item, "allocation_strategy", ip, false),
			Priority:           v.integer(item, "priority", ip, false, constants.DefaultPriority),
		}
		if spec.AllocationStrategy == "" {
			spec.AllocationStrategy = constants.AllocationSequential
		}
		v.enum(spec.ZoneType, constants.ZoneTypes, join(ip, "zone_type"))
		v.enum(spec.AllocationStrategy, constants.AllocationStrategies, join(ip, "allocation_strategy"))

		if spec.PortSpec != "" {
			ports, err := utils.ExpandPortSpec(spec.PortSpec)
			if err != nil {
				v.addHint(constants.CodeInvalidFormat, join(ip, "port_spec"), `use ranges like "1-16" or "1-4,9"`, "%v", err)
			}
			spec.Ports = ports
		}

		if spec.BreakoutOption != "" {
			if spec.AllocationStrategy == constants.AllocationRailOptimized {
				v.add(constants.CodeInvalidValue, join(ip, "breakout_option"),
					"breakout zones cannot use rail-optimized allocation")
			}
			v.checkSupportedBreakout(spec, join(ip, "breakout_option"))
		}

		if spec.SwitchClass == "" || spec.ZoneName == "" {
			continue
		}
		ref := spec.Ref()
		if _, dup := v.zones[ref]; dup {
			v.add(constants.CodeInvalidValue, join(ip, "zone_name"), "duplicate zone %q on switch class %q", spec.ZoneName, spec.SwitchClass)
			continue
		}
		v.zones[ref] = len(v.doc.SwitchPortZones)
		paths[ref] = ip
		v.doc.SwitchPortZones = append(v.doc.SwitchPortZones, spec)
	}

	// zones of one switch class must not share physical ports
	for i := range v.doc.SwitchPortZones {
		a := &v.doc.SwitchPortZones[i]
		for j := i + 1; j < len(v.doc.SwitchPortZones); j++ {
			b := &v.doc.SwitchPortZones[j]
			if a.SwitchClass != b.SwitchClass {
				continue
			}
			if overlap := utils.IntersectPorts(a.Ports, b.Ports); len(overlap) > 0 {
				v.add(constants.CodeInvalidValue, join(paths[b.Ref()], "port_spec"),
					"zone %q overlaps zone %q on ports %s", b.ZoneName, a.ZoneName, utils.CompactRange(overlap))
			}
		}
	}
}

func (v *validator) checkSupportedBreakout(zone ZoneSpec, path string) {
	scIdx, ok := v.switchClasses[zone.SwitchClass]
	if !ok {
		return
	}
	extIdx, ok := v.extensions[v.doc.SwitchClasses[scIdx].DeviceTypeExtension]
	if !ok {
		return
	}
	ext := v.doc.ReferenceData.DeviceTypeExtensions[extIdx]
	bo := v.doc.ReferenceData.BreakoutOptions[v.breakouts[zone.BreakoutOption]]
	if len(ext.SupportedBreakouts) > 0 && !utils.Contains(ext.SupportedBreakouts, bo.BreakoutID) {
		v.add(constants.CodeInvalidValue, path, "breakout %q is not supported by device type extension %q", bo.BreakoutID, ext.ID)
	}
}

func (v *validator) serverClassList(raw map[string]interface{}) {
	list, ok := v.list(raw, "server_classes", "", true)
	if !ok {
		return
	}
	for i, item := range v.items(list, "server_classes") {
		if item == nil {
			continue
		}
		ip := index("server_classes", i)
		normalizeAlias(item, "server_class_id")

		spec := ServerClassSpec{
			ServerClassID:    v.str(item, "server_class_id", ip, true),
			Category:         v.str(item, "category", ip, true),
			Quantity:         v.integer(item, "quantity", ip, true, 0),
			GPUsPerServer:    v.integer(item, "gpus_per_server", ip, false, 0),
			ServerDeviceType: v.ref(item, "server_device_type", ip, "device type", v.deviceTypes, true),
		}
		v.enum(spec.Category, constants.ServerCategories, join(ip, "category"))
		v.atLeast(spec.Quantity, 0, join(ip, "quantity"))
		v.atLeast(spec.GPUsPerServer, 0, join(ip, "gpus_per_server"))

		if v.register(v.serverClasses, spec.ServerClassID, join(ip, "server_class_id"), len(v.doc.ServerClasses)) {
			v.doc.ServerClasses = append(v.doc.ServerClasses, spec)
		}
	}
}

func (v *validator) connectionList(raw map[string]interface{}) {
	list, ok := v.list(raw, "server_connections", "", true)
	if !ok {
		return
	}
	seen := map[string]bool{}

	for i, item := range v.items(list, "server_connections") {
		if item == nil {
			continue
		}
		ip := index("server_connections", i)

		spec := ConnectionSpec{
			ServerClass:        v.ref(item, "server_class", ip, "server class", v.serverClasses, true),
			ConnectionID:       v.str(item, "connection_id", ip, true),
			NICModuleType:      v.ref(item, "nic_module_type", ip, "module type", v.moduleTypes, false),
			PortIndex:          v.integer(item, "port_index", ip, false, 0),
			PortsPerConnection: v.integer(item, "ports_per_connection", ip, false, 1),
			HedgehogConnType:   v.str(item, "hedgehog_conn_type", ip, false),
			Distribution:       v.str(item, "distribution", ip, false),
			Speed:              v.integer(item, "speed", ip, true, 0),
			Rail:               v.optInt(item, "rail", ip, false),
			PortType:           v.str(item, "port_type", ip, false),
		}
		if spec.HedgehogConnType == "" {
			spec.HedgehogConnType = "unbundled"
		}
		if spec.Distribution == "" {
			spec.Distribution = constants.DistributionSameSwitch
		}
		if spec.PortType == "" {
			spec.PortType = constants.DefaultPortType
		}
		v.enum(spec.HedgehogConnType, constants.ConnectionTypes, join(ip, "hedgehog_conn_type"))
		v.enum(spec.Distribution, constants.Distributions, join(ip, "distribution"))
		v.enum(spec.PortType, constants.PortTypes, join(ip, "port_type"))
		v.atLeast(spec.PortIndex, 0, join(ip, "port_index"))
		v.atLeast(spec.PortsPerConnection, 1, join(ip, "ports_per_connection"))
		if _, present := item["speed"]; present {
			v.atLeast(spec.Speed, 1, join(ip, "speed"))
		}
		if spec.Rail != nil {
			v.atLeast(*spec.Rail, 0, join(ip, "rail"))
		}

		zone := v.target(item, ip)
		if zone != nil {
			spec.TargetZone = zone.Ref()
			v.checkDistribution(spec, zone, ip)
		}
		v.checkNICPorts(spec, ip)

		if spec.ServerClass == "" || spec.ConnectionID == "" {
			continue
		}
		key := spec.ServerClass + "/" + spec.ConnectionID
		if seen[key] {
			v.add(constants.CodeInvalidValue, join(ip, "connection_id"),
				"duplicate connection %q on server class %q", spec.ConnectionID, spec.ServerClass)
			continue
		}
		seen[key] = true
		if zone != nil {
			v.doc.ServerConnections = append(v.doc.ServerConnections, spec)
		}
	}
}

// target resolves the connection's target zone. Only target_zone is accepted;
// the legacy target_switch_class key is rejected outright.
func (v *validator) target(item map[string]interface{}, path string) *ZoneSpec {
	if _, legacy := item["target_switch_class"]; legacy {
		v.addHint(constants.CodeDeprecatedKey, join(path, "target_switch_class"),
			`replace with target_zone: "<switch_class_id>/<zone_name>"`,
			"target_switch_class is no longer supported")
		return nil
	}

	rawTarget, present := item["target_zone"]
	if !present || rawTarget == nil {
		v.addHint(constants.CodeMissingField, join(path, "target_zone"),
			`add target_zone: "<switch_class_id>/<zone_name>"`, "connection has no target_zone")
		return nil
	}
	target, ok := rawTarget.(string)
	if !ok {
		v.add(constants.CodeInvalidType, join(path, "target_zone"), "expected string, got %s", typeName(rawTarget))
		return nil
	}

	parts := strings.Split(strings.TrimSpace(target), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		v.addHint(constants.CodeInvalidFormat, join(path, "target_zone"),
			`expected "<switch_class_id>/<zone_name>"`, "malformed target_zone %q", target)
		return nil
	}

	ref := ZoneRef{SwitchClass: parts[0], Zone: parts[1]}
	idx, ok := v.zones[ref]
	if !ok {
		v.add(constants.CodeUnknownReference, join(path, "target_zone"), "zone %q is not declared in this case", ref.String())
		return nil
	}
	return &v.doc.SwitchPortZones[idx]
}

// checkDistribution flags connections whose distribution disagrees with the
// allocation strategy of their target zone about rail optimization.
func (v *validator) checkDistribution(conn ConnectionSpec, zone *ZoneSpec, path string) {
	railConn := conn.Distribution == constants.DistributionRailOptimized
	railZone := zone.AllocationStrategy == constants.AllocationRailOptimized

	if railConn && conn.Rail == nil {
		v.add(constants.CodeMissingRequired, join(path, "rail"), "rail is required for rail-optimized distribution")
	}
	if railConn != railZone {
		v.addHint(constants.CodeInvalidValue, join(path, "distribution"),
			"use rail-optimized on both the connection and its target zone, or on neither",
			"distribution %q conflicts with allocation_strategy %q of zone %q",
			conn.Distribution, zone.AllocationStrategy, zone.Ref().String())
	}
}

func (v *validator) checkNICPorts(conn ConnectionSpec, path string) {
	if conn.NICModuleType == "" {
		return
	}
	mt := v.doc.ReferenceData.ModuleTypes[v.moduleTypes[conn.NICModuleType]]
	if len(mt.Interfaces) == 0 {
		return
	}
	if need := conn.PortIndex + conn.PortsPerConnection; need > len(mt.Interfaces) {
		v.add(constants.CodeInvalidValue, join(path, "ports_per_connection"),
			"module type %q has %d ports, connection needs ports %d-%d",
			mt.ID, len(mt.Interfaces), conn.PortIndex, need-1)
	}
}

func (v *validator) expected(raw map[string]interface{}) {
	exp, ok := v.mapping(raw, "expected", "", false)
	if !ok {
		return
	}
	counts, ok := v.mapping(exp, "counts", "expected", false)
	if !ok {
		return
	}
	const p = "expected.counts"
	ec := &ExpectedCounts{
		ServerClasses: v.optInt(counts, "server_classes", p, false),
		SwitchClasses: v.optInt(counts, "switch_classes", p, false),
		Connections:   v.optInt(counts, "connections", p, false),
		Zones:         v.optInt(counts, "zones", p, false),
	}
	for _, c := range []struct {
		key string
		n   *int
	}{
		{"server_classes", ec.ServerClasses},
		{"switch_classes", ec.SwitchClasses},
		{"connections", ec.Connections},
		{"zones", ec.Zones},
	} {
		if c.n != nil {
			v.atLeast(*c.n, 0, join(p, c.key))
		}
	}
	v.doc.Expected = ec
}
