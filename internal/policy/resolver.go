// Package policy maps pending alerts to the recipients that should hear about them.
package policy

import (
	"context"
	"strings"
	"sync"

	"github.com/netspec/alertbatch/internal/config"
	"github.com/netspec/alertbatch/internal/types"
	"github.com/rs/zerolog"
)

// Resolver routes alerts by type and severity. The first matching route wins;
// alerts no route matches go to the default receivers. Routes that share the
// same receivers are merged into one group.
//
// Resolver is safe for concurrent use; Update swaps the routes atomically.
type Resolver struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	routes   []config.Route
	fallback types.Receivers
}

// NewResolver creates a resolver from validated policies.
func NewResolver(policies *config.PolicyConfig, logger zerolog.Logger) *Resolver {
	r := &Resolver{logger: logger.With().Str("component", "policy-resolver").Logger()}
	r.Update(policies)
	return r
}

// Update replaces the routing policies.
func (r *Resolver) Update(policies *config.PolicyConfig) {
	routes := make([]config.Route, len(policies.Routes))
	copy(routes, policies.Routes)

	var fallback types.Receivers
	if policies.Default != nil {
		fallback = *policies.Default
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = routes
	r.fallback = fallback

	r.logger.Info().Int("routes", len(routes)).Strs("default_to", fallback.To).Msg("Routing policies applied")
}

// ResolveGroups partitions alerts into recipient groups. Each alert lands in
// exactly one group. Groups come back in first-seen order of receivers with
// alert types iterated in sorted order, so the output is deterministic.
func (r *Resolver) ResolveGroups(_ context.Context, alerts types.AlertsByType) ([]types.RecipientGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var groups []types.RecipientGroup
	index := make(map[string]int)

	for _, alertType := range alerts.Types() {
		for _, alert := range alerts[alertType].Sorted() {
			receivers := r.receiversFor(alert)
			key := receivers.Key()

			i, ok := index[key]
			if !ok {
				i = len(groups)
				index[key] = i
				groups = append(groups, types.RecipientGroup{
					Receivers: receivers,
					Alerts:    make(types.AlertsByType),
				})
			}
			groups[i].Alerts.Add(alert)
		}
	}

	return groups, nil
}

// receiversFor returns the receivers of the first route matching alert.
func (r *Resolver) receiversFor(alert types.Alert) types.Receivers {
	for _, route := range r.routes {
		if matches(route, alert) {
			return route.Receivers()
		}
	}
	return r.fallback
}

// matches reports whether alert satisfies every matcher the route sets.
func matches(route config.Route, alert types.Alert) bool {
	if len(route.Types) > 0 && !containsFold(route.Types, string(alert.Type)) {
		return false
	}
	if len(route.Severities) > 0 && !containsFold(route.Severities, alert.Severity) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
