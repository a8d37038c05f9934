package disambig

import "strings"

// PathSeparator separates the components GetUniqueSubsets works on.
const PathSeparator = `\`

// GetUniqueSubsets returns, for each path, its shortest run of consecutive
// `\`-separated components that no other unresolved path contains. Shorter
// runs are tried first and, within one length, runs nearer the end of the
// path win.
func GetUniqueSubsets(paths []string) []string {
	return UniqueSubsets(paths, PathSeparator)
}

// UniqueSubsets is GetUniqueSubsets with an explicit separator.
//
// For each window length the counts of all candidate windows are taken once.
// Items resolved in a round only release their windows after the round, so
// one assignment cannot make another item's window look unique at the same
// length. Items shorter than the window length fall back to their full path
// once no item has a window left.
func UniqueSubsets(paths []string, sep string) []string {
	comps := make([][]string, len(paths))
	for i, p := range paths {
		comps[i] = strings.Split(p, sep)
	}
	results := make([]string, len(paths))
	found := make([]bool, len(paths))
	remaining := len(paths)

	for length := 1; remaining > 0; length++ {
		windows := make([][]string, len(paths))
		counts := map[string]int{}
		hasWindows := false
		for i, c := range comps {
			if found[i] {
				continue
			}
			windows[i] = windowsEndFirst(c, length, sep)
			for _, w := range windows[i] {
				counts[w]++
			}
			hasWindows = hasWindows || len(windows[i]) > 0
		}
		if !hasWindows {
			for i := range paths {
				if !found[i] {
					results[i] = paths[i]
					found[i] = true
				}
			}
			break
		}

		for changed := true; changed; {
			changed = false
			var resolved []int
			for i := range windows {
				if found[i] {
					continue
				}
				for _, w := range windows[i] {
					if counts[w] == 1 {
						results[i] = w
						resolved = append(resolved, i)
						changed = true
						break
					}
				}
			}
			for _, i := range resolved {
				for _, w := range windows[i] {
					counts[w]--
				}
				found[i] = true
				remaining--
			}
		}
	}
	return results
}

// windowsEndFirst lists the runs of length consecutive components, starting
// with the run that ends the path.
func windowsEndFirst(comps []string, length int, sep string) []string {
	n := len(comps) - length + 1
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for start := n - 1; start >= 0; start-- {
		out = append(out, strings.Join(comps[start:start+length], sep))
	}
	return out
}
