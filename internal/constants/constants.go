package constants

// Ownership
const (
	ManagedByYAML = "yaml"
	CaseIDPattern = `^[a-z0-9_]+$`
)

// NetBox managed tag constants
const (
	ManagedTagSlug        = "hedgehog-planner"
	ManagedTagName        = "Hedgehog Planner"
	ManagedTagColor       = "4caf50"
	ManagedTagDescription = "Generated by the Hedgehog topology planner"
	PlanTagPrefix         = "hh-plan-"
	PlanTagColor          = "2196f3"
)

// Plan statuses
const (
	PlanStatusDraft    = "draft"
	PlanStatusReview   = "review"
	PlanStatusApproved = "approved"
	PlanStatusExported = "exported"
)

var PlanStatuses = []string{PlanStatusDraft, PlanStatusReview, PlanStatusApproved, PlanStatusExported}

// Reference modes
const (
	ReferenceModeEnsure  = "ensure"
	ReferenceModeRequire = "require"
)

// Allocation strategies and distributions
const (
	AllocationSequential    = "sequential"
	AllocationRailOptimized = "rail-optimized"

	DistributionSameSwitch    = "same-switch"
	DistributionAlternating   = "alternating"
	DistributionRailOptimized = "rail-optimized"
)

var (
	AllocationStrategies = []string{AllocationSequential, AllocationRailOptimized}
	Distributions        = []string{DistributionSameSwitch, DistributionAlternating, DistributionRailOptimized}
	Fabrics              = []string{"frontend", "backend", "oob"}
	HedgehogRoles        = []string{"spine", "server-leaf", "border-leaf", "virtual"}
	ZoneTypes            = []string{"server", "uplink", "fabric", "mesh", "peer", "oob"}
	ServerCategories     = []string{"gpu", "storage", "infrastructure"}
	ConnectionTypes      = []string{"unbundled", "bundled", "mclag", "eslag"}
	PortTypes            = []string{"data", "ipmi", "pxe"}
)

// Zone defaults
const (
	ZoneTypeServer  = "server"
	DefaultPriority = 100
	DefaultPortType = "data"
)

// Error codes
const (
	CodeMissingRequired   = "missing_required"
	CodeInvalidType       = "invalid_type"
	CodeInvalidFormat     = "invalid_format"
	CodeInvalidEnum       = "invalid_enum"
	CodeInvalidValue      = "invalid_value"
	CodeMissingReference  = "missing_reference"
	CodeUnknownReference  = "unknown_reference"
	CodeDeprecatedKey     = "deprecated_key"
	CodeMissingField      = "missing_field"
	CodeOwnershipConflict = "ownership_conflict"
	CodeAssertionFailed   = "assertion_failed"
	CodeYAMLParseError    = "yaml_parse_error"
	CodeNotFound          = "not_found"
)

// Generated inventory
const (
	DeviceKindServer = "server"
	DeviceKindSwitch = "switch"

	// ZoneCustomField tags switch-side interfaces with their originating zone.
	ZoneCustomField = "hedgehog_zone"

	SwitchInterfacePrefix = "E1/"
	DefaultSiteSlug       = "hedgehog-plans"
	DefaultSiteName       = "Hedgehog Plans"
	DefaultCableStatus    = "connected"
)

// Termination types
const (
	TerminationInterface = "dcim.interface"
)

// Endpoints
const (
	EndpointInterfaces = "interfaces"
	EndpointDevices    = "devices"
	EndpointCables     = "cables"
)

// Role colors for generated device roles
var RoleColorMap = map[string]string{
	"server":      "#9e9e9e",
	"spine":       "#f44336",
	"server-leaf": "#2196f3",
	"border-leaf": "#ff9800",
	"virtual":     "#607d8b",
}

// Cable color map
var CableColorMap = map[string]string{
	"cat6":  "f44336",
	"cat6a": "ffeb3b",
	"dac":   "000000",
	"aoc":   "00bcd4",
	"mmf":   "2196f3",
	"smf":   "9c27b0",
}
