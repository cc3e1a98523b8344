package domain

import (
	"fmt"
	"strings"
)

// ModelCandidate is one (provider, model) pair in the failover sequence.
// The candidate list is process-wide configuration: it is parsed once at
// startup and read-only afterwards, so it needs no locking.
type ModelCandidate struct {
	Provider string
	Model    string
}

func (c ModelCandidate) String() string {
	return c.Provider + "/" + c.Model
}

// ParseCandidateList parses a comma-separated "provider/model" list into an
// ordered candidate slice. List order is priority order: cheaper or faster
// candidates go first, the most reliable fallback last.
func ParseCandidateList(raw string) ([]ModelCandidate, error) {
	var out []ModelCandidate
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		provider, model, ok := strings.Cut(entry, "/")
		if !ok || strings.TrimSpace(provider) == "" || strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("invalid model candidate %q (want provider/model)", entry)
		}
		out = append(out, ModelCandidate{
			Provider: strings.ToLower(strings.TrimSpace(provider)),
			Model:    strings.TrimSpace(model),
		})
	}
	return out, nil
}
