package schema

import "strings"

// RenameMap maps schema path prefixes to physical names. For the path
// "task.userId" the prefixes "task" and "task.userId" are looked up, and each
// hit replaces the segment that ends the prefix:
//
//	{"user": "u", "task.userId": "user_id"}
//	user.age    -> u.age
//	task.userId -> task.user_id
type RenameMap map[string]string

// Rename returns the renamed segments of path.
func (m RenameMap) Rename(path string) []string {
	segs := strings.Split(path, ".")
	if len(m) == 0 {
		return segs
	}
	out := make([]string, len(segs))
	for i := range segs {
		prefix := strings.Join(segs[:i+1], ".")
		if renamed, ok := m[prefix]; ok {
			out[i] = renamed
			continue
		}
		out[i] = segs[i]
	}
	return out
}
