package overrides

import "reflect"

// mergeInputSchema combines base with override per strategy.
func mergeInputSchema(strategy MergeStrategy, base, override map[string]any) map[string]any {
	switch strategy {
	case StrategyReplace:
		return cloneMap(override)
	case StrategyDeepMerge:
		return deepMerge(base, override, make(map[uintptr]bool), 0)
	default: // StrategyMerge, or an unset/unrecognized value
		return shallowMerge(base, override)
	}
}

func shallowMerge(base, override map[string]any) map[string]any {
	result := cloneMap(base)
	for k, v := range override {
		result[k] = v
	}
	return result
}

// deepMerge merges base and override one level deeper than shallowMerge:
// when both sides hold a nested map at the same key, that nested map is
// itself shallow-merged; nested maps inside THAT are replaced wholesale.
// A cycle (the same map object reachable from both base and override)
// falls back to a wholesale replace at the point it's detected.
func deepMerge(base, override map[string]any, visited map[uintptr]bool, depth int) map[string]any {
	result := cloneMap(base)
	for k, v := range override {
		if depth < 1 {
			if baseChild, ok := result[k].(map[string]any); ok {
				if overrideChild, ok := v.(map[string]any); ok {
					if isCycle(baseChild, overrideChild, visited) {
						result[k] = overrideChild
						continue
					}
					result[k] = deepMerge(baseChild, overrideChild, visited, depth+1)
					continue
				}
			}
		}
		result[k] = v
	}
	return result
}

func isCycle(a, b map[string]any, visited map[uintptr]bool) bool {
	pa := reflect.ValueOf(a).Pointer()
	pb := reflect.ValueOf(b).Pointer()
	if visited[pa] || visited[pb] {
		return true
	}
	visited[pa] = true
	visited[pb] = true
	return false
}

func cloneMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

// applyPropertyOverrides post-processes named entries of schema's
// "properties" map, leaving every other property and every other schema
// field untouched.
func applyPropertyOverrides(schema map[string]any, overrides map[string]PropertyOverride) map[string]any {
	if schema == nil || len(overrides) == 0 {
		return schema
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return schema
	}

	result := cloneMap(schema)
	newProps := cloneMap(props)
	for name, po := range overrides {
		existing, _ := newProps[name].(map[string]any)
		updated := cloneMap(existing)
		if po.Description != nil {
			updated["description"] = *po.Description
		}
		if po.Default != nil {
			updated["default"] = po.Default
		}
		if po.Enum != nil {
			updated["enum"] = po.Enum
		}
		if po.Type != "" {
			updated["type"] = po.Type
		}
		newProps[name] = updated
	}
	result["properties"] = newProps
	return result
}

// mergeAnnotations shallow-merges annotations onto meta's "annotations" map,
// returning a new meta object (def's original meta is left untouched).
func mergeAnnotations(meta map[string]any, annotations map[string]any) map[string]any {
	result := cloneMap(meta)
	existing, _ := result["annotations"].(map[string]any)
	merged := cloneMap(existing)
	for k, v := range annotations {
		merged[k] = v
	}
	result["annotations"] = merged
	return result
}
