package reconciler

import (
	"context"
	"fmt"

	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// DeviceTypeSpec is a device type together with its manufacturer's slug
type DeviceTypeSpec struct {
	models.DeviceType
	Manufacturer string
}

// ModuleTypeSpec is a module type together with its manufacturer's slug
type ModuleTypeSpec struct {
	models.ModuleType
	Manufacturer string
}

// DeviceTypeReconciler handles manufacturers, device types and module types
type DeviceTypeReconciler struct {
	client *client.NetBoxClient
	logger *utils.Logger
}

// NewDeviceTypeReconciler creates a new device type reconciler
func NewDeviceTypeReconciler(c *client.NetBoxClient) *DeviceTypeReconciler {
	return &DeviceTypeReconciler{
		client: c,
		logger: c.Logger(),
	}
}

// ReconcileManufacturers reconciles manufacturers by slug
func (dtr *DeviceTypeReconciler) ReconcileManufacturers(ctx context.Context, manufacturers []models.Manufacturer) error {
	dtr.logger.Info("Reconciling %d manufacturers...", len(manufacturers))

	for _, m := range manufacturers {
		payload := map[string]interface{}{
			"name": m.Name,
			"slug": m.Slug,
		}
		obj, err := dtr.client.Apply(ctx, "dcim", "manufacturers", map[string]interface{}{"slug": m.Slug}, payload)
		if err != nil {
			return fmt.Errorf("failed to reconcile manufacturer %s: %w", m.Slug, err)
		}
		dtr.client.Cache().Set(client.ResourceManufacturers, m.Slug, utils.GetIDFromObject(obj))
	}

	return nil
}

// ReconcileDeviceTypes reconciles device types and their interface templates
func (dtr *DeviceTypeReconciler) ReconcileDeviceTypes(ctx context.Context, deviceTypes []DeviceTypeSpec) error {
	dtr.logger.Info("Reconciling %d device types...", len(deviceTypes))

	for _, dt := range deviceTypes {
		mfgID, ok := dtr.client.Cache().GetID(client.ResourceManufacturers, dt.Manufacturer)
		if !ok && !dtr.client.IsDryRun() {
			return fmt.Errorf("manufacturer %s not found for device type %s", dt.Manufacturer, dt.Slug)
		}

		payload := map[string]interface{}{
			"model":        dt.Model,
			"slug":         dt.Slug,
			"manufacturer": mfgID,
		}
		if dt.UHeight > 0 {
			payload["u_height"] = dt.UHeight
		}

		lookup := map[string]interface{}{"slug": dt.Slug}
		dtObj, err := dtr.client.Apply(ctx, "dcim", "device-types", lookup, payload)
		if err != nil {
			return fmt.Errorf("failed to reconcile device type %s: %w", dt.Model, err)
		}

		dtID := utils.GetIDFromObject(dtObj)
		dtr.client.Cache().Set(client.ResourceDeviceTypes, dt.Slug, dtID)
		if dtID == 0 {
			continue
		}

		if err := dtr.reconcileInterfaceTemplates(ctx, "device_type", dtID, dt.Interfaces); err != nil {
			return fmt.Errorf("failed to reconcile interface templates for %s: %w", dt.Model, err)
		}
	}

	return nil
}

// ReconcileModuleTypes reconciles NIC module types and their interface templates
func (dtr *DeviceTypeReconciler) ReconcileModuleTypes(ctx context.Context, moduleTypes []ModuleTypeSpec) error {
	dtr.logger.Info("Reconciling %d module types...", len(moduleTypes))

	for _, mt := range moduleTypes {
		mfgID, ok := dtr.client.Cache().GetID(client.ResourceManufacturers, mt.Manufacturer)
		if !ok && !dtr.client.IsDryRun() {
			return fmt.Errorf("manufacturer %s not found for module type %s", mt.Manufacturer, mt.Model)
		}

		payload := map[string]interface{}{
			"model":        mt.Model,
			"manufacturer": mfgID,
		}
		lookup := map[string]interface{}{
			"manufacturer_id": mfgID,
			"model":           mt.Model,
		}

		mtObj, err := dtr.client.Apply(ctx, "dcim", "module-types", lookup, payload)
		if err != nil {
			return fmt.Errorf("failed to reconcile module type %s: %w", mt.Model, err)
		}

		mtID := utils.GetIDFromObject(mtObj)
		if mtID == 0 {
			continue
		}

		if err := dtr.reconcileInterfaceTemplates(ctx, "module_type", mtID, mt.Interfaces); err != nil {
			return fmt.Errorf("failed to reconcile interface templates for %s: %w", mt.Model, err)
		}
	}

	return nil
}

// reconcileInterfaceTemplates reconciles templates owned by a device or module type
func (dtr *DeviceTypeReconciler) reconcileInterfaceTemplates(ctx context.Context, owner string, ownerID int, templates []models.InterfaceTemplate) error {
	for _, tmpl := range templates {
		ifType := tmpl.Type
		if ifType == "" {
			ifType = "other"
		}
		payload := map[string]interface{}{
			owner:       ownerID,
			"name":      tmpl.Name,
			"type":      ifType,
			"mgmt_only": tmpl.MgmtOnly,
		}

		lookup := map[string]interface{}{
			owner + "_id": ownerID,
			"name":        tmpl.Name,
		}

		// Templates don't support tags
		if _, err := dtr.client.ApplyUntagged(ctx, "dcim", "interface-templates", lookup, payload); err != nil {
			return fmt.Errorf("failed to reconcile interface template %s: %w", tmpl.Name, err)
		}
	}

	return nil
}
