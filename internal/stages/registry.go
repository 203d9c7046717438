package stages

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/legosorter/internal/scripts"
)

var (
	ErrStageExists     = errors.New("stage already exists")
	ErrUnknownStage    = errors.New("unknown stage")
	ErrInvalidMetadata = errors.New("invalid stage metadata")
)

// Registry stores stages by stable identifier.
type Registry struct {
	items map[string]Stage
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Stage)}
}

// ValidateStage checks required fields and id format.
func ValidateStage(s Stage) error {
	id := strings.TrimSpace(s.ID)
	name := strings.TrimSpace(s.Name)
	desc := strings.TrimSpace(s.Description)
	if id == "" || name == "" || desc == "" {
		return fmt.Errorf("%w: id, name, and description are required", ErrInvalidMetadata)
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	if s.Script == nil {
		return fmt.Errorf("%w: stage %s has no script", ErrInvalidMetadata, id)
	}
	return nil
}

// Register adds a stage to the registry.
func (r *Registry) Register(s Stage) error {
	if err := ValidateStage(s); err != nil {
		return err
	}
	if _, ok := r.items[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrStageExists, s.ID)
	}
	r.items[s.ID] = s
	return nil
}

// Resolve returns a stage by id.
func (r *Registry) Resolve(id string) (Stage, bool) {
	s, ok := r.items[strings.TrimSpace(id)]
	return s, ok
}

// List returns stages ordered by id.
func (r *Registry) List() []Stage {
	list := make([]Stage, 0, len(r.items))
	for _, s := range r.items {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// ResolveAll resolves ids in order, failing on the first unknown id.
func (r *Registry) ResolveAll(ids []string) ([]Stage, error) {
	out := make([]Stage, 0, len(ids))
	for _, id := range ids {
		s, ok := r.Resolve(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultPipeline is the order the scene is built in.
func DefaultPipeline() []string {
	return []string{
		scripts.ClearScene,
		scripts.CreateSortingBucket,
		scripts.CreateConveyorBelt,
		scripts.ImportLegoParts,
		scripts.AnimateLegoPhysics,
		scripts.SetupLighting,
	}
}

// DefaultRegistry registers every built-in stage script.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtins() {
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("stages: builtin %s: %v", s.ID, err))
		}
	}
	return r
}

func builtins() []Stage {
	return []Stage{
		{
			ID:          scripts.ClearScene,
			Script:      hostScript(scripts.ClearScene),
			Name:        "Scene Clearing",
			Description: "Delete every object, mesh, material and collection and reset the timeline.",
		},
		{
			ID:          scripts.CreateSortingBucket,
			Script:      hostScript(scripts.CreateSortingBucket),
			Name:        "Sorting Bucket",
			Description: "Build the funnel bucket with its exit hole and passive collider.",
		},
		{
			ID:          scripts.CreateConveyorBelt,
			Script:      hostScript(scripts.CreateConveyorBelt),
			Name:        "Conveyor Belt",
			Description: "Build the inclined conveyor as a passive rigid body, with its supports.",
			Skippable:   true,
		},
		{
			ID:          scripts.ImportLegoParts,
			Script:      hostScript(scripts.ImportLegoParts),
			Name:        "LEGO Parts",
			Description: "Import LDraw parts into the lego_parts collection, stacked above the bucket.",
		},
		{
			ID:          scripts.AnimateLegoPhysics,
			Script:      hostScript(scripts.AnimateLegoPhysics),
			Name:        "Physics Animation",
			Description: "Add rigid bodies to the bucket, conveyor and parts, then configure the world, ground plane and bake range.",
		},
		{
			ID:          scripts.SetupLighting,
			Script:      hostScript(scripts.SetupLighting),
			Name:        "Lighting",
			Description: "Add key, fill and rim lights, world ambient and the sorter camera.",
		},
	}
}

// hostScript renders the embedded host script named id.
func hostScript(id string) func(scripts.Params) (string, error) {
	return func(p scripts.Params) (string, error) {
		return scripts.Stage(id, p)
	}
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
