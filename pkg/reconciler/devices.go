package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// ErrDeviceConflict is returned when a device name is already taken in NetBox
// by another plan or by a device the planner does not manage
var ErrDeviceConflict = errors.New("device name is owned elsewhere")

// kbpsPerGbps converts planner speeds to NetBox interface speeds
const kbpsPerGbps = 1_000_000

// DeviceSpec is one generated device as pushed to NetBox
type DeviceSpec struct {
	Name       string
	Role       string
	DeviceType string
	Interfaces []InterfaceSpec
}

// InterfaceSpec is one generated interface as pushed to NetBox
type InterfaceSpec struct {
	Name  string
	Speed int
	Zone  string
}

// portKey identifies an interface by device and port name
type portKey struct {
	device string
	port   string
}

// DeviceReconciler handles device and interface reconciliation
type DeviceReconciler struct {
	client *client.NetBoxClient
	logger *utils.Logger
	// planTag is the slug of the plan tag the devices are pushed under
	planTag string
	// ports indexes every reconciled interface for cable reconciliation
	ports map[portKey]*CableEndpoint
	// deviceIDs maps reconciled device names to their NetBox IDs
	deviceIDs map[string]int
}

// NewDeviceReconciler creates a device reconciler for the plan tagged planTag
func NewDeviceReconciler(c *client.NetBoxClient, planTag string) *DeviceReconciler {
	return &DeviceReconciler{
		client:    c,
		logger:    c.Logger(),
		planTag:   planTag,
		ports:     make(map[portKey]*CableEndpoint),
		deviceIDs: make(map[string]int),
	}
}

// ReconcileDevices reconciles devices and their interfaces at siteID
func (dr *DeviceReconciler) ReconcileDevices(ctx context.Context, siteID int, devices []DeviceSpec, tagIDs ...int) error {
	dr.logger.Info("Reconciling %d devices...", len(devices))

	for i, device := range devices {
		dr.logger.Debug("──── Device %d/%d: %s ────", i+1, len(devices), device.Name)
		if err := dr.reconcileDevice(ctx, siteID, device, tagIDs); err != nil {
			return fmt.Errorf("failed to reconcile device %s: %w", device.Name, err)
		}
	}

	return nil
}

func (dr *DeviceReconciler) reconcileDevice(ctx context.Context, siteID int, device DeviceSpec, tagIDs []int) error {
	dryRun := dr.client.IsDryRun()

	roleID, ok := dr.client.Cache().GetID(client.ResourceRoles, utils.Slugify(device.Role))
	if !ok && !dryRun {
		return fmt.Errorf("role %s not found", device.Role)
	}

	deviceTypeID, ok := dr.client.Cache().GetID(client.ResourceDeviceTypes, device.DeviceType)
	if !ok && !dryRun {
		return fmt.Errorf("device type %s not found", device.DeviceType)
	}

	payload := map[string]interface{}{
		"name":        device.Name,
		"site":        siteID,
		"role":        roleID,
		"device_type": deviceTypeID,
		"status":      "planned",
	}

	lookup := map[string]interface{}{
		"name":    device.Name,
		"site_id": siteID,
	}

	if err := dr.claim(ctx, device.Name, lookup); err != nil {
		return err
	}

	deviceObj, err := dr.client.Apply(ctx, "dcim", constants.EndpointDevices, lookup, payload, tagIDs...)
	if err != nil {
		return fmt.Errorf("failed to apply device: %w", err)
	}

	deviceID := utils.GetIDFromObject(deviceObj)
	dr.deviceIDs[device.Name] = deviceID

	return dr.reconcileInterfaces(ctx, deviceID, device, tagIDs)
}

// claim fails when a device found by lookup is hand-made or carries the tag
// of a different plan; such devices are never adopted
func (dr *DeviceReconciler) claim(ctx context.Context, name string, lookup map[string]interface{}) error {
	existing, err := dr.client.Filter(ctx, "dcim", constants.EndpointDevices, lookup)
	if err != nil {
		return fmt.Errorf("failed to look up device: %w", err)
	}

	tags := dr.client.Tags()
	for _, obj := range existing {
		if !tags.IsManaged(obj) {
			return fmt.Errorf("%w: %s exists and is not managed by the planner", ErrDeviceConflict, name)
		}
		if owner := planTagOf(obj); owner != "" && owner != dr.planTag {
			return fmt.Errorf("%w: %s belongs to %s", ErrDeviceConflict, name, owner)
		}
	}
	return nil
}

// planTagOf returns the slug of the first plan tag on obj
func planTagOf(obj client.Object) string {
	tags, _ := obj["tags"].([]interface{})
	for _, tag := range tags {
		m, ok := tag.(map[string]interface{})
		if !ok {
			continue
		}
		if slug, _ := m["slug"].(string); strings.HasPrefix(slug, constants.PlanTagPrefix) {
			return slug
		}
	}
	return ""
}

// reconcileInterfaces reconciles device interfaces; switch ports carry their zone
func (dr *DeviceReconciler) reconcileInterfaces(ctx context.Context, deviceID int, device DeviceSpec, tagIDs []int) error {
	for i, iface := range device.Interfaces {
		dr.logger.Debug("    Interface %d/%d: %s", i+1, len(device.Interfaces), iface.Name)

		payload := map[string]interface{}{
			"device":  deviceID,
			"name":    iface.Name,
			"type":    utils.InterfaceTypeForSpeed(iface.Speed),
			"enabled": true,
		}
		if iface.Speed > 0 {
			payload["speed"] = iface.Speed * kbpsPerGbps
		}
		if iface.Zone != "" {
			payload["custom_fields"] = map[string]interface{}{constants.ZoneCustomField: iface.Zone}
		}

		ifaceID := 0
		if deviceID != 0 {
			lookup := map[string]interface{}{
				"device_id": deviceID,
				"name":      iface.Name,
			}
			ifaceObj, err := dr.client.Apply(ctx, "dcim", constants.EndpointInterfaces, lookup, payload, tagIDs...)
			if err != nil {
				return fmt.Errorf("failed to apply interface %s: %w", iface.Name, err)
			}
			ifaceID = utils.GetIDFromObject(ifaceObj)
		} else {
			dr.logger.DryRun("CREATE", "interface %s[%s]", device.Name, iface.Name)
		}

		dr.ports[portKey{device: device.Name, port: iface.Name}] = &CableEndpoint{
			DeviceName: device.Name,
			PortName:   iface.Name,
			ObjectType: constants.TerminationInterface,
			ObjectID:   ifaceID,
		}
	}

	return nil
}

// Endpoint returns the reconciled interface on device/port, or nil
func (dr *DeviceReconciler) Endpoint(device, port string) *CableEndpoint {
	return dr.ports[portKey{device: device, port: port}]
}

// DeviceID returns the NetBox ID of a reconciled device
func (dr *DeviceReconciler) DeviceID(name string) (int, bool) {
	id, ok := dr.deviceIDs[name]
	return id, ok
}
