package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// TagSpec describes a tag to create when missing
type TagSpec struct {
	Slug        string
	Name        string
	Color       string
	Description string
}

// TagManager handles tag operations
type TagManager struct {
	client *NetBoxClient
	mu     sync.Mutex
	ids    map[string]int
}

// NewTagManager creates a new tag manager
func NewTagManager(client *NetBoxClient) *TagManager {
	return &TagManager{client: client, ids: make(map[string]int)}
}

// PlanTag returns the tag marking every object pushed for planName
func PlanTag(planName string) TagSpec {
	return TagSpec{
		Slug:        constants.PlanTagPrefix + utils.Slugify(planName),
		Name:        "Hedgehog plan " + planName,
		Color:       constants.PlanTagColor,
		Description: fmt.Sprintf("Inventory generated for plan %q", planName),
	}
}

// Ensure ensures a tag exists, creating it if necessary
func (tm *TagManager) Ensure(ctx context.Context, spec TagSpec) (int, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if id, ok := tm.ids[spec.Slug]; ok {
		return id, nil
	}

	tags, err := tm.client.Filter(ctx, "extras", "tags", map[string]interface{}{"slug": spec.Slug})
	if err != nil {
		return 0, fmt.Errorf("failed to filter tags: %w", err)
	}
	if len(tags) > 0 {
		id := utils.GetIDFromObject(tags[0])
		tm.ids[spec.Slug] = id
		return id, nil
	}

	if tm.client.dryRun {
		tm.client.logger.DryRun("CREATE", "tag %s", spec.Slug)
		return 0, nil
	}

	tagData := map[string]interface{}{
		"slug":  spec.Slug,
		"name":  spec.Name,
		"color": utils.NormalizeColor(spec.Color),
	}
	if spec.Description != "" {
		tagData["description"] = spec.Description
	}

	tag, err := tm.client.Create(ctx, "extras", "tags", tagData)
	if err != nil {
		// Another process might have created it
		tm.client.logger.Warning("Tag creation failed, retrying lookup: %v", err)
		tags, lookupErr := tm.client.Filter(ctx, "extras", "tags", map[string]interface{}{"slug": spec.Slug})
		if lookupErr != nil {
			return 0, fmt.Errorf("failed to retry tag lookup: %w", lookupErr)
		}
		if len(tags) > 0 {
			id := utils.GetIDFromObject(tags[0])
			tm.ids[spec.Slug] = id
			return id, nil
		}
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}

	id := utils.GetIDFromObject(tag)
	tm.ids[spec.Slug] = id
	tm.client.logger.Success("Created tag: %s", spec.Slug)
	return id, nil
}

// HasTag reports whether obj carries the tag with id tagID or slug
func (tm *TagManager) HasTag(obj Object, tagID int, slug string) bool {
	tags, ok := obj["tags"].([]interface{})
	if !ok {
		return false
	}

	for _, tag := range tags {
		if id := utils.GetIDFromObject(tag); tagID != 0 && id == tagID {
			return true
		}
		if tagMap, ok := tag.(map[string]interface{}); ok {
			if s, ok := tagMap["slug"].(string); ok && s == slug {
				return true
			}
		}
	}

	return false
}

// IsManaged checks if an object carries the planner's managed tag
func (tm *TagManager) IsManaged(obj Object) bool {
	return tm.HasTag(obj, tm.client.managedTagID, constants.ManagedTagSlug)
}

// InjectTags returns a copy of payload whose tags include every non-zero id in tagIDs
func (tm *TagManager) InjectTags(payload map[string]interface{}, tagIDs ...int) map[string]interface{} {
	result := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		result[k] = v
	}

	var ids []int
	seen := make(map[int]bool)
	add := func(id int) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	switch existing := payload["tags"].(type) {
	case []int:
		for _, id := range existing {
			add(id)
		}
	case []interface{}:
		for _, tag := range existing {
			switch v := tag.(type) {
			case int:
				add(v)
			case map[string]interface{}:
				add(utils.GetIDFromObject(v))
			}
		}
	}
	for _, id := range tagIDs {
		add(id)
	}

	if len(ids) == 0 {
		delete(result, "tags")
		return result
	}
	result["tags"] = ids
	return result
}
