package stacktrace

import "strings"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" frames from a raw stack trace.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}
		frame, _, _ := strings.Cut(line, " ")
		_, rel, found := strings.Cut(frame, "/internal/")
		if !found {
			continue
		}
		paths = append(paths, "internal/"+rel)
	}
	return paths
}
