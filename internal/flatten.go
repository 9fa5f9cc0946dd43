package internal

import "fmt"

// Flatten collapses a decoded JSON object into a single-level map whose keys
// are dotted paths, e.g. {"object_attributes": {"action": "open"}} becomes
// {"object_attributes.action": "open"}. Array elements get indexed keys.
// Skip-rule expressions are evaluated against the flattened form.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, path+"."+key, child)
		}
	case []interface{}:
		out[path] = typed
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}
