package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// PlannerConfig holds the settings that change what plan a given
// operation produces. Anything that alters planner output belongs
// here: the config hash is part of every cache key, so two routers
// with different planner settings never share cached plans.
type PlannerConfig struct {
	// GenerateFragments compacts repeated selection sets into
	// fragments in subgraph fetches.
	GenerateFragments bool

	// IncludeDefer enables @defer support in generated plans.
	IncludeDefer bool

	// TypeConditionedFetching scopes fetches by type condition.
	TypeConditionedFetching bool

	// SubgraphVersions pins per-subgraph API versions, rendered into
	// the hash in sorted order by Hash.
	SubgraphVersions map[string]string
}

// Hash returns a stable hex digest of the config. Field values are
// rendered one per line with an explicit name so reordering fields or
// adding new ones cannot collide with an existing hash.
func (c PlannerConfig) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "generate_fragments:%t\n", c.GenerateFragments)
	fmt.Fprintf(h, "include_defer:%t\n", c.IncludeDefer)
	fmt.Fprintf(h, "type_conditioned_fetching:%t\n", c.TypeConditionedFetching)
	for _, k := range sortedKeys(c.SubgraphVersions) {
		fmt.Fprintf(h, "subgraph:%s=%s\n", k, c.SubgraphVersions[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
