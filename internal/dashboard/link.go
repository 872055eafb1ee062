package dashboard

import "strings"

// parseLinks extracts the rel -> URL pairs from an RFC 8288 Link header,
// e.g. `<https://api/networks?startingAfter=x>; rel=next`.
func parseLinks(header string) map[string]string {
	links := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		target := strings.TrimSpace(segs[0])
		if len(target) < 2 || target[0] != '<' || target[len(target)-1] != '>' {
			continue
		}
		target = target[1 : len(target)-1]
		for _, param := range segs[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
				links[strings.ToLower(rel)] = target
			}
		}
	}
	return links
}
