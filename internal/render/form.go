package render

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"foundation_site/internal/domain"
)

// PatchFromForm builds a block patch from an edit form. Field names are
// dotted paths: "stats.0.value" sets the value of the first stat, "items.2"
// the third list item. A ":bool" suffix marks a boolean field. Names
// starting with "_" are form controls and are ignored. When a name repeats
// the last value wins. Array rows whose fields are all empty are dropped.
func PatchFromForm(form url.Values) (map[string]any, error) {
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	slices.Sort(names)

	root := map[string]any{}
	for _, name := range names {
		values := form[name]
		if strings.HasPrefix(name, "_") || len(values) == 0 {
			continue
		}

		path, kind, _ := strings.Cut(name, ":")
		var value any = values[len(values)-1]
		switch kind {
		case "":
		case "bool":
			value = parseBool(values[len(values)-1])
		default:
			return nil, domain.Invalid(name, "unknown field kind %q", kind)
		}

		if err := insert(root, strings.Split(path, "."), value); err != nil {
			return nil, domain.Invalid(name, "%v", err)
		}
	}

	for key, value := range root {
		root[key] = normalize(value)
	}
	return root, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func insert(node map[string]any, path []string, value any) error {
	key := path[0]
	if key == "" {
		return fmt.Errorf("empty path segment")
	}

	existing, exists := node[key]
	if len(path) == 1 {
		if _, isNode := existing.(map[string]any); isNode {
			return fmt.Errorf("%s is both a value and a group", key)
		}
		node[key] = value
		return nil
	}

	if !exists {
		child := map[string]any{}
		node[key] = child
		return insert(child, path[1:], value)
	}
	child, ok := existing.(map[string]any)
	if !ok {
		return fmt.Errorf("%s is both a value and a group", key)
	}
	return insert(child, path[1:], value)
}

// normalize turns groups keyed by indexes into arrays in index order.
func normalize(v any) any {
	node, ok := v.(map[string]any)
	if !ok {
		return v
	}

	if indexes, ok := indexKeys(node); ok {
		out := make([]any, 0, len(indexes))
		for _, i := range indexes {
			item := normalize(node[strconv.Itoa(i)])
			if blank(item) {
				continue
			}
			out = append(out, item)
		}
		return out
	}

	for key, child := range node {
		node[key] = normalize(child)
	}
	return node
}

func indexKeys(node map[string]any) ([]int, bool) {
	if len(node) == 0 {
		return nil, false
	}
	indexes := make([]int, 0, len(node))
	for key := range node {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || strconv.Itoa(i) != key {
			return nil, false
		}
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	return indexes, true
}

func blank(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		for _, child := range t {
			if !blank(child) {
				return false
			}
		}
		return true
	}
	return v == nil
}
