package reconciler

import (
	"context"
	"fmt"
	"sort"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// CableReconciler handles cable reconciliation with full idempotency
type CableReconciler struct {
	client         *client.NetBoxClient
	logger         *utils.Logger
	processedPairs map[string]bool
	// unresolved counts endpoints without a NetBox ID (dry run on a fresh plan)
	unresolved int
}

// NewCableReconciler creates a new cable reconciler
func NewCableReconciler(c *client.NetBoxClient) *CableReconciler {
	return &CableReconciler{
		client:         c,
		logger:         c.Logger(),
		processedPairs: make(map[string]bool),
	}
}

// CableEndpoint represents one end of a cable
type CableEndpoint struct {
	DeviceName string
	PortName   string
	ObjectType string
	ObjectID   int
}

// CableSpec is the desired configuration of a cable
type CableSpec struct {
	CableType string
	Color     string
	Label     string
}

// ReconcileCable reconciles a cable between two endpoints (IDEMPOTENT)
func (cr *CableReconciler) ReconcileCable(ctx context.Context, aEnd, bEnd *CableEndpoint, spec *CableSpec, tagIDs ...int) error {
	if aEnd == nil || bEnd == nil {
		return fmt.Errorf("cable endpoints cannot be nil")
	}

	cr.logger.Debug("│ Cable: %s[%s] ↔ %s[%s]", aEnd.DeviceName, aEnd.PortName, bEnd.DeviceName, bEnd.PortName)

	pairID := cr.createPairID(aEnd, bEnd)
	if cr.processedPairs[pairID] {
		cr.logger.Debug("│ Already processed")
		return nil
	}
	cr.processedPairs[pairID] = true

	if aEnd.ObjectID == 0 || bEnd.ObjectID == 0 {
		if !cr.client.IsDryRun() {
			return fmt.Errorf("cable %s: endpoint has no ID", pairID)
		}
		cr.unresolved++
		cr.logger.DryRun("CREATE", "Cable: %s[%s] <-> %s[%s]", aEnd.DeviceName, aEnd.PortName, bEnd.DeviceName, bEnd.PortName)
		return nil
	}

	existing, err := cr.findExistingCable(ctx, aEnd, bEnd)
	if err != nil {
		return fmt.Errorf("failed to check existing cable: %w", err)
	}

	if existing == nil {
		if err := cr.createCable(ctx, aEnd, bEnd, spec, tagIDs); err != nil {
			return fmt.Errorf("failed to create cable: %w", err)
		}
		cr.logger.Success("│ Cable created: %s[%s] ↔ %s[%s]", aEnd.DeviceName, aEnd.PortName, bEnd.DeviceName, bEnd.PortName)
		return nil
	}

	if cr.verifyCable(existing, spec) {
		cr.logger.Debug("│ No changes needed (ID: %v)", existing["id"])
		return nil
	}

	if err := cr.updateCable(ctx, existing, spec, tagIDs); err != nil {
		return fmt.Errorf("failed to update cable: %w", err)
	}
	cr.logger.Success("│ Cable updated (ID: %v)", existing["id"])
	return nil
}

// createPairID creates a canonical, order-independent identifier for a cable.
// Names rather than IDs keep it stable when endpoints are not created yet.
func (cr *CableReconciler) createPairID(aEnd, bEnd *CableEndpoint) string {
	aID := fmt.Sprintf("%s:%s:%s", aEnd.ObjectType, aEnd.DeviceName, aEnd.PortName)
	bID := fmt.Sprintf("%s:%s:%s", bEnd.ObjectType, bEnd.DeviceName, bEnd.PortName)

	ids := []string{aID, bID}
	sort.Strings(ids)

	return fmt.Sprintf("%s <-> %s", ids[0], ids[1])
}

// findExistingCable searches both directions for a cable between two endpoints
func (cr *CableReconciler) findExistingCable(ctx context.Context, aEnd, bEnd *CableEndpoint) (client.Object, error) {
	for _, ends := range [][2]*CableEndpoint{{aEnd, bEnd}, {bEnd, aEnd}} {
		cables, err := cr.client.Filter(ctx, "dcim", constants.EndpointCables, map[string]interface{}{
			"termination_a_type": ends[0].ObjectType,
			"termination_a_id":   ends[0].ObjectID,
		})
		if err != nil {
			return nil, err
		}

		for _, cable := range cables {
			if cr.matchesEndpoint(cable, "b", ends[1]) {
				return cable, nil
			}
		}
	}

	return nil, nil
}

// matchesEndpoint checks whether one side of a cable terminates on endpoint
func (cr *CableReconciler) matchesEndpoint(cable client.Object, side string, endpoint *CableEndpoint) bool {
	terms, _ := cable[side+"_terminations"].([]interface{})
	for _, t := range terms {
		term, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		objType, _ := term["object_type"].(string)
		if objType == endpoint.ObjectType && utils.GetIDFromObject(term["object_id"]) == endpoint.ObjectID {
			return true
		}
	}
	return false
}

// terminationIDs returns the object IDs of one side of a cable
func terminationIDs(cable client.Object, side string) []int {
	terms, _ := cable[side+"_terminations"].([]interface{})
	var ids []int
	for _, t := range terms {
		if term, ok := t.(map[string]interface{}); ok {
			ids = append(ids, utils.GetIDFromObject(term["object_id"]))
		}
	}
	return ids
}

// verifyCable checks if an existing cable matches the desired configuration
func (cr *CableReconciler) verifyCable(cable client.Object, spec *CableSpec) bool {
	if spec == nil {
		return true
	}

	if spec.CableType != "" && choiceValue(cable["type"]) != spec.CableType {
		cr.logger.Debug("│ Cable type mismatch: %v != %s", cable["type"], spec.CableType)
		return false
	}
	if spec.Color != "" {
		if color, _ := cable["color"].(string); color != spec.Color {
			cr.logger.Debug("│ Cable color mismatch: %s != %s", color, spec.Color)
			return false
		}
	}
	if spec.Label != "" {
		if label, _ := cable["label"].(string); label != spec.Label {
			cr.logger.Debug("│ Cable label mismatch: %s != %s", label, spec.Label)
			return false
		}
	}

	return true
}

// choiceValue unwraps NetBox choice fields ({"value": ..., "label": ...})
func choiceValue(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		v = m["value"]
	}
	s, _ := v.(string)
	return s
}

func (cr *CableReconciler) specPayload(spec *CableSpec) map[string]interface{} {
	payload := make(map[string]interface{})
	if spec == nil {
		return payload
	}
	if spec.CableType != "" {
		payload["type"] = spec.CableType
	}
	if spec.Color != "" {
		payload["color"] = spec.Color
	}
	if spec.Label != "" {
		payload["label"] = spec.Label
	}
	return payload
}

// createCable creates a new cable
func (cr *CableReconciler) createCable(ctx context.Context, aEnd, bEnd *CableEndpoint, spec *CableSpec, tagIDs []int) error {
	payload := cr.specPayload(spec)
	payload["a_terminations"] = []map[string]interface{}{
		{"object_type": aEnd.ObjectType, "object_id": aEnd.ObjectID},
	}
	payload["b_terminations"] = []map[string]interface{}{
		{"object_type": bEnd.ObjectType, "object_id": bEnd.ObjectID},
	}
	payload["status"] = constants.DefaultCableStatus

	payload = cr.client.Tags().InjectTags(payload, append([]int{cr.client.ManagedTagID()}, tagIDs...)...)

	_, err := cr.client.Create(ctx, "dcim", constants.EndpointCables, payload)
	return err
}

// updateCable updates an existing cable
func (cr *CableReconciler) updateCable(ctx context.Context, cable client.Object, spec *CableSpec, tagIDs []int) error {
	cableID := utils.GetIDFromObject(cable)
	if cableID == 0 {
		return fmt.Errorf("cable has no ID")
	}

	updates := cr.specPayload(spec)
	if len(updates) == 0 {
		return nil
	}
	updates = cr.client.Tags().InjectTags(updates, append([]int{cr.client.ManagedTagID()}, tagIDs...)...)

	return cr.client.Update(ctx, "dcim", constants.EndpointCables, cableID, updates)
}

// Unresolved reports how many cables were skipped because an endpoint had no ID
func (cr *CableReconciler) Unresolved() int {
	return cr.unresolved
}

// Reset clears the processed pairs; call it before each push
func (cr *CableReconciler) Reset() {
	cr.processedPairs = make(map[string]bool)
	cr.unresolved = 0
}
