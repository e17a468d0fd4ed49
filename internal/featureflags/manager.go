// Package featureflags evaluates FEATURE_FLAGS style rollout settings.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags understood by the service.
const (
	ApplicantStatusCache = "applicant_status_cache"
	ReviewerBroadcast    = "reviewer_broadcast"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "applicant_status_cache=on,reviewer_broadcast=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given subject.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout keyed by subject id, e.g. 25%)
func (m *Manager) Enabled(name string, subjectID string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if subjectID == "" {
		return false
	}
	return rolloutBucket(name, subjectID) < pct
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one subject.
func (m *Manager) Snapshot(subjectID string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, subjectID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, subjectID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subjectID))
	return int(h.Sum32() % 100)
}
