// Package tree provides the path utilities shared by every file operation.
//
// Paths are absolute, "/"-separated and never carry a trailing separator once
// composed. An empty root stands for the server root.
package tree

import "strings"

// Separator is the only separator the panel understands.
const Separator = "/"

// TrimTrailingSeparator drops exactly one trailing separator.
func TrimTrailingSeparator(path string) string {
	return strings.TrimSuffix(path, Separator)
}

// StripLeadingSeparator drops exactly one leading separator.
func StripLeadingSeparator(path string) string {
	return strings.TrimPrefix(path, Separator)
}

// ComposeChildPath joins a parent path and a child name. The result always
// starts with a separator and never contains a doubled one at the join.
func ComposeChildPath(root, name string) string {
	return TrimTrailingSeparator(root) + Separator + StripLeadingSeparator(name)
}

// RootDisplay renders an empty root as "/".
func RootDisplay(root string) string {
	if len(root) == 0 {
		return Separator
	}
	return root
}

// SplitParentAndName splits on the last separator. The parent of a
// top-level entry is "".
func SplitParentAndName(path string) (parent, name string) {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
