package httpHelpers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

type Timings map[string]time.Duration

// WriteTimings sets the Server-Timing header. Must be called before the body is written.
func WriteTimings(w http.ResponseWriter, timings Timings) {
	names := make([]string, 0, len(timings))
	for k := range timings {
		names = append(names, k)
	}
	sort.Strings(names)

	timingEntries := make([]string, 0, len(timings))
	for _, k := range names {
		timingEntries = append(timingEntries, fmt.Sprintf("%s;dur=%.2f", k, timings[k].Seconds()*1000.0))
	}
	w.Header().Set("Server-Timing", strings.Join(timingEntries, ","))
}
