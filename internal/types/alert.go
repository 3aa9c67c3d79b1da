package types

import (
	"sort"
	"strings"
	"time"
)

// AlertType is the category an alert belongs to (e.g. "DISK").
type AlertType string

// Alert represents one pending alert occurrence
type Alert struct {
	Type        AlertType         `json:"type"`
	Device      string            `json:"device"`
	Entity      string            `json:"entity,omitempty"`
	Severity    string            `json:"severity,omitempty"`
	Message     string            `json:"message,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	FiredAt     time.Time         `json:"fired_at"`
	LastSeen    time.Time         `json:"last_seen"`
	Occurrences int               `json:"occurrences"`
}

// Key returns the identity key of the alert. Alerts sharing a key are the
// same pending alert.
func (a Alert) Key() string {
	return Key(a.Type, a.Device, a.Entity)
}

// Key builds an identity key from its parts.
func Key(alertType AlertType, device, entity string) string {
	return string(alertType) + ":" + device + ":" + entity
}

// AlertSet holds alerts keyed by identity
type AlertSet map[string]Alert

// Sorted returns the alerts ordered by key.
func (s AlertSet) Sorted() []Alert {
	out := make([]Alert, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// AlertsByType maps an alert type to its set of pending alerts.
type AlertsByType map[AlertType]AlertSet

// Count returns the number of alerts across all types.
func (m AlertsByType) Count() int {
	n := 0
	for _, set := range m {
		n += len(set)
	}
	return n
}

// Types returns the types that hold at least one alert, sorted.
func (m AlertsByType) Types() []AlertType {
	out := make([]AlertType, 0, len(m))
	for t, set := range m {
		if len(set) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add places a into the set for its type, creating the set if needed.
func (m AlertsByType) Add(a Alert) {
	set, ok := m[a.Type]
	if !ok {
		set = make(AlertSet)
		m[a.Type] = set
	}
	set[a.Key()] = a
}

// Receivers is the resolved recipient list of a message.
type Receivers struct {
	To []string `json:"to" yaml:"to"`
	CC []string `json:"cc,omitempty" yaml:"cc,omitempty"`
}

// Key returns a canonical form so that equal recipient sets compare equal
// regardless of order or case.
func (r Receivers) Key() string {
	return canonical(r.To) + "|" + canonical(r.CC)
}

func canonical(addrs []string) string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// RecipientGroup bundles the alerts destined for one set of receivers.
type RecipientGroup struct {
	Receivers Receivers
	Alerts    AlertsByType
}
