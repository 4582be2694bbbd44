package ingest

import (
	"fmt"
	"slices"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/schema"
)

// refIDs maps case-local reference ids to store ids
type refIDs struct {
	manufacturers map[string]int
	deviceTypes   map[string]int
	extensions    map[string]int
	breakouts     map[string]int
	moduleTypes   map[string]int
}

// resolveReferences looks up every reference_data entry by natural key. In
// require mode missing entries are collected and returned before anything is
// written; in ensure mode they are created or updated to match the case.
func (a *applier) resolveReferences(mode string) (*refIDs, error) {
	refs := &refIDs{
		manufacturers: map[string]int{},
		deviceTypes:   map[string]int{},
		extensions:    map[string]int{},
		breakouts:     map[string]int{},
		moduleTypes:   map[string]int{},
	}
	rd := a.c.ReferenceData
	require := mode == constants.ReferenceModeRequire
	var missing []schema.Issue

	miss := func(path, format string, args ...interface{}) {
		missing = append(missing, schema.Issue{
			Code:    constants.CodeMissingReference,
			Path:    path,
			Message: fmt.Sprintf(format, args...),
			Hint:    "apply with reference mode ensure or create it first",
		})
	}

	for i, spec := range rd.Manufacturers {
		path := fmt.Sprintf("reference_data.manufacturers[%d]", i)
		m := a.tx.Manufacturer(spec.Slug)
		switch {
		case m == nil && require:
			miss(path, "manufacturer %q does not exist", spec.Slug)
			continue
		case m == nil:
			m = &models.Manufacturer{Slug: spec.Slug}
			a.tx.AddManufacturer(m)
			a.logger.Debug("Created manufacturer %s", spec.Slug)
		}
		if !require {
			m.Name = spec.Name
		}
		refs.manufacturers[spec.ID] = m.ID
	}

	for i, spec := range rd.DeviceTypes {
		path := fmt.Sprintf("reference_data.device_types[%d]", i)
		dt := a.tx.DeviceType(spec.Slug)
		switch {
		case dt == nil && require:
			miss(path, "device type %q does not exist", spec.Slug)
			continue
		case dt == nil:
			dt = &models.DeviceType{Slug: spec.Slug}
			a.tx.AddDeviceType(dt)
			a.logger.Debug("Created device type %s", spec.Slug)
		}
		if !require {
			dt.ManufacturerID = refs.manufacturers[spec.Manufacturer]
			dt.Model = spec.Model
			dt.UHeight = spec.UHeight
			dt.Interfaces = slices.Clone(spec.Interfaces)
		}
		refs.deviceTypes[spec.ID] = dt.ID
	}

	for i, spec := range rd.DeviceTypeExtensions {
		path := fmt.Sprintf("reference_data.device_type_extensions[%d]", i)
		dtID, ok := refs.deviceTypes[spec.DeviceType]
		if !ok {
			// device type already reported missing
			continue
		}
		ext := a.tx.Extension(dtID)
		switch {
		case ext == nil && require:
			miss(path, "device type extension for %q does not exist", spec.DeviceType)
			continue
		case ext == nil:
			ext = &models.DeviceTypeExtension{DeviceTypeID: dtID}
			a.tx.AddExtension(ext)
			a.logger.Debug("Created device type extension for %s", spec.DeviceType)
		}
		if !require {
			ext.MCLAGCapable = spec.MCLAGCapable
			ext.HedgehogRoles = slices.Clone(spec.HedgehogRoles)
			ext.NativeSpeed = spec.NativeSpeed
			ext.UplinkPorts = spec.UplinkPorts
			ext.SupportedBreakouts = slices.Clone(spec.SupportedBreakouts)
			ext.HedgehogProfileName = spec.HedgehogProfileName
		}
		refs.extensions[spec.ID] = ext.ID
	}

	for i, spec := range rd.BreakoutOptions {
		path := fmt.Sprintf("reference_data.breakout_options[%d]", i)
		bo := a.tx.BreakoutOption(spec.BreakoutID)
		switch {
		case bo == nil && require:
			miss(path, "breakout option %q does not exist", spec.BreakoutID)
			continue
		case bo == nil:
			bo = &models.BreakoutOption{BreakoutID: spec.BreakoutID}
			a.tx.AddBreakoutOption(bo)
			a.logger.Debug("Created breakout option %s", spec.BreakoutID)
		}
		if !require {
			bo.FromSpeed = spec.FromSpeed
			bo.LogicalPorts = spec.LogicalPorts
			bo.LogicalSpeed = spec.LogicalSpeed
			bo.OpticType = spec.OpticType
		}
		refs.breakouts[spec.ID] = bo.ID
	}

	for i, spec := range rd.ModuleTypes {
		path := fmt.Sprintf("reference_data.module_types[%d]", i)
		mfgID, ok := refs.manufacturers[spec.Manufacturer]
		if !ok {
			continue
		}
		mt := a.tx.ModuleType(mfgID, spec.Model)
		switch {
		case mt == nil && require:
			miss(path, "module type %q does not exist", spec.Model)
			continue
		case mt == nil:
			mt = &models.ModuleType{ManufacturerID: mfgID, Model: spec.Model}
			a.tx.AddModuleType(mt)
			a.logger.Debug("Created module type %s", spec.Model)
		}
		if !require {
			mt.Interfaces = slices.Clone(spec.Interfaces)
		}
		refs.moduleTypes[spec.ID] = mt.ID
	}

	if len(missing) > 0 {
		return nil, &TestCaseValidationError{CaseID: a.caseID, Issues: missing}
	}
	return refs, nil
}
