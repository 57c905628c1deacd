package serpapi

import (
	"regexp"
	"strconv"
	"strings"
)

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// splitSummary parses the "Authors - Venue, Year - domain" publication
// summary string SerpAPI passes through from Scholar.
func splitSummary(s string) (names []string, venue string, year int) {
	parts := strings.Split(s, " - ")
	if len(parts) > 0 {
		for _, n := range strings.Split(parts[0], ",") {
			n = strings.TrimSpace(n)
			if n != "" && n != "…" && n != "..." {
				names = append(names, n)
			}
		}
	}
	if len(parts) > 1 {
		venuePart := strings.TrimSpace(parts[1])
		if m := yearRe.FindString(venuePart); m != "" {
			year, _ = strconv.Atoi(m)
			venuePart = strings.TrimSpace(strings.TrimSuffix(venuePart, m))
			venuePart = strings.TrimRight(venuePart, ", ")
		}
		venue = venuePart
	}
	return names, venue, year
}
