package disambig

func isTokenDelim(c byte) bool {
	return c == '_' || c == '-'
}

// matchOrOut reports whether a[i] == b[j], treating an index outside either
// string as a match.
func matchOrOut(a string, i int, b string, j int) bool {
	return i < 0 || i >= len(a) || j < 0 || j >= len(b) || a[i] == b[j]
}

// TrimSharedTokens removes the longest common leading and trailing runs of
// whole tokens, where tokens are delimited by '_' or '-'. A value consisting
// only of shared tokens becomes "". For example ["pre-A-post", "pre-B-post"]
// becomes ["A", "B"] and ["A", "A-B"] becomes ["", "B"].
func TrimSharedTokens(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)

	rep := representative(out)
	minLen := minLength(out)

	// The scan may run one past the end of the shortest value so that
	// ["a", "a-b"] trims the "a" token from both.
	lead, leadTokens := 0, 0
	for lead <= minLen && allMatch(out, func(v string) bool { return matchOrOut(v, lead, out[rep], lead) }) {
		full := lead == len(out[rep]) || isTokenDelim(out[rep][lead])
		lead++
		if full {
			leadTokens = lead
		}
	}
	for i, v := range out {
		out[i] = v[min(len(v), leadTokens):]
	}

	minLen = minLength(out)
	r := out[rep]
	trail, trailTokens := 0, 0
	for trail <= minLen && allMatch(out, func(v string) bool {
		return matchOrOut(v, len(v)-trail-1, r, len(r)-trail-1)
	}) {
		full := trail == len(r) || isTokenDelim(r[len(r)-trail-1])
		trail++
		if full {
			trailTokens = trail
		}
	}
	for i, v := range out {
		out[i] = v[:max(0, len(v)-trailTokens)]
	}
	return out
}

// representative is the index of a value longer than the shortest one, or 0
// when all have the same length.
func representative(values []string) int {
	minLen := minLength(values)
	for i, v := range values {
		if len(v) > minLen {
			return i
		}
	}
	return 0
}

func minLength(values []string) int {
	m := len(values[0])
	for _, v := range values[1:] {
		m = min(m, len(v))
	}
	return m
}

func allMatch(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}
