package reconciler

import (
	"context"
	"fmt"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// FoundationReconciler handles objects shared by every plan: site, roles,
// the zone custom field and plan tags
type FoundationReconciler struct {
	client *client.NetBoxClient
	logger *utils.Logger
}

// NewFoundationReconciler creates a new foundation reconciler
func NewFoundationReconciler(c *client.NetBoxClient) *FoundationReconciler {
	return &FoundationReconciler{
		client: c,
		logger: c.Logger(),
	}
}

// ReconcileSite makes sure the site holding generated devices exists
func (fr *FoundationReconciler) ReconcileSite(ctx context.Context) (int, error) {
	payload := map[string]interface{}{
		"name":   constants.DefaultSiteName,
		"slug":   constants.DefaultSiteSlug,
		"status": "planned",
	}

	lookup := map[string]interface{}{"slug": constants.DefaultSiteSlug}
	obj, err := fr.client.Apply(ctx, "dcim", "sites", lookup, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile site %s: %w", constants.DefaultSiteSlug, err)
	}

	return utils.GetIDFromObject(obj), nil
}

// ReconcileRoles reconciles one device role per Hedgehog role
func (fr *FoundationReconciler) ReconcileRoles(ctx context.Context, roles []string) error {
	fr.logger.Info("Reconciling %d roles...", len(roles))

	for _, role := range roles {
		slug := utils.Slugify(role)
		payload := map[string]interface{}{
			"name":  role,
			"slug":  slug,
			"color": utils.GetRoleColor(role),
		}

		lookup := map[string]interface{}{"slug": slug}
		obj, err := fr.client.Apply(ctx, "dcim", "device-roles", lookup, payload)
		if err != nil {
			return fmt.Errorf("failed to reconcile role %s: %w", role, err)
		}
		fr.client.Cache().Set(client.ResourceRoles, slug, utils.GetIDFromObject(obj))
	}

	return nil
}

// EnsureZoneField creates the hedgehog_zone interface custom field when missing.
// An existing field is left alone so operators can edit its label or ordering.
func (fr *FoundationReconciler) EnsureZoneField(ctx context.Context) error {
	existing, err := fr.client.Filter(ctx, "extras", "custom-fields", map[string]interface{}{"name": constants.ZoneCustomField})
	if err != nil {
		return fmt.Errorf("failed to look up custom field %s: %w", constants.ZoneCustomField, err)
	}
	if len(existing) > 0 {
		return nil
	}

	_, err = fr.client.Create(ctx, "extras", "custom-fields", map[string]interface{}{
		"name":         constants.ZoneCustomField,
		"label":        "Hedgehog zone",
		"type":         "text",
		"object_types": []string{constants.TerminationInterface},
		"description":  "Switch port zone the interface was allocated from",
	})
	if err != nil {
		return fmt.Errorf("failed to create custom field %s: %w", constants.ZoneCustomField, err)
	}
	fr.logger.Success("Created custom field: %s", constants.ZoneCustomField)
	return nil
}

// ReconcilePlanTag ensures the tag that scopes every object of planName
func (fr *FoundationReconciler) ReconcilePlanTag(ctx context.Context, planName string) (int, client.TagSpec, error) {
	spec := client.PlanTag(planName)
	id, err := fr.client.Tags().Ensure(ctx, spec)
	if err != nil {
		return 0, spec, fmt.Errorf("failed to ensure plan tag %s: %w", spec.Slug, err)
	}
	return id, spec, nil
}
