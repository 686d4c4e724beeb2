// AngelaMos | 2026
// policy.go

package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aquasense/sonda-api/internal/core"
)

const (
	outcomeAllow     = "allow"
	outcomeDeny      = "deny"
	outcomeNotFound  = "not_found"
	outcomeConflict  = "conflict"
	outcomeError     = "error"
	decisionSpanName = "access.authorize"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sonda_access_decisions_total",
		Help: "Authorization decisions by action and outcome",
	},
	[]string{"action", "outcome"},
)

// FactsLoader reads the access facts for one pair. A missing installation is
// core.ErrNotFound.
type FactsLoader interface {
	LoadFacts(ctx context.Context, userID, installationID string) (*Facts, error)
}

// DefaultRule grants every action to the creator, explicit grantees and
// members of the installation's branch.
func DefaultRule() Rule {
	return AnyOf(Creator, Granted, SameBranch)
}

type Policy struct {
	loader FactsLoader
	rules  map[Action]Rule
	logger *slog.Logger
}

func NewPolicy(loader FactsLoader, logger *slog.Logger) *Policy {
	rule := DefaultRule()
	return &Policy{
		loader: loader,
		rules: map[Action]Rule{
			ActionRead:    rule,
			ActionWrite:   rule,
			ActionDelete:  rule,
			ActionRestore: rule,
		},
		logger: logger,
	}
}

// WithRule replaces the rule of one action, e.g. WithRule(ActionDelete, Creator).
func (p *Policy) WithRule(action Action, rule Rule) *Policy {
	rules := make(map[Action]Rule, len(p.rules))
	for a, r := range p.rules {
		rules[a] = r
	}
	rules[action] = rule

	return &Policy{loader: p.loader, rules: rules, logger: p.logger}
}

func (p *Policy) Rule(action Action) Rule {
	if rule, ok := p.rules[action]; ok {
		return rule
	}
	return AnyOf()
}

// Authorize decides whether userID may perform action on installationID.
//
// Unknown or malformed ids and denied rules are both ErrForbidden, so callers
// cannot probe for existence. Only an authorized caller learns that an
// installation is deleted (ErrNotFound) or, for restore, not deleted
// (ErrConflict).
func (p *Policy) Authorize(
	ctx context.Context,
	userID, installationID string,
	action Action,
) (*Facts, error) {
	ctx, span := core.StartSpan(ctx, decisionSpanName,
		attribute.String("access.action", string(action)),
		attribute.String("access.installation_id", installationID),
	)
	defer span.End()

	facts, outcome, err := p.decide(ctx, userID, installationID, action)

	decisionsTotal.WithLabelValues(string(action), outcome).Inc()
	core.AddSpanEvent(ctx, "access.decision",
		attribute.String("access.outcome", outcome),
	)

	if outcome == outcomeError {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if outcome != outcomeAllow {
		p.logger.DebugContext(ctx, "access denied",
			"user_id", userID,
			"installation_id", installationID,
			"action", action,
			"outcome", outcome,
		)
	}

	return facts, err
}

func (p *Policy) decide(
	ctx context.Context,
	userID, installationID string,
	action Action,
) (*Facts, string, error) {
	if !action.Valid() {
		return nil, outcomeError, fmt.Errorf("authorize: unknown action %q", action)
	}

	if _, err := uuid.Parse(installationID); err != nil {
		return nil, outcomeDeny, fmt.Errorf("authorize: %w", core.ErrForbidden)
	}

	facts, err := p.loader.LoadFacts(ctx, userID, installationID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, outcomeDeny, fmt.Errorf("authorize: %w", core.ErrForbidden)
		}
		return nil, outcomeError, fmt.Errorf("load access facts: %w", err)
	}

	if !p.Rule(action).Allow(*facts) {
		return nil, outcomeDeny, fmt.Errorf("authorize: %w", core.ErrForbidden)
	}

	switch {
	case action == ActionRestore && !facts.Deleted():
		return facts, outcomeConflict, fmt.Errorf(
			"restore: installation is not deleted: %w",
			core.ErrConflict,
		)
	case action != ActionRestore && facts.Deleted():
		return facts, outcomeNotFound, fmt.Errorf("authorize: %w", core.ErrNotFound)
	}

	return facts, outcomeAllow, nil
}

// CanAccess reports whether Authorize would succeed. Storage failures count
// as no access.
func (p *Policy) CanAccess(
	ctx context.Context,
	userID, installationID string,
	action Action,
) bool {
	_, err := p.Authorize(ctx, userID, installationID, action)
	return err == nil
}

// Filter renders the rule of action as a SQL condition over the installations
// alias, with userArg as the caller's placeholder.
func (p *Policy) Filter(action Action, alias, userArg string) string {
	return p.Rule(action).SQL(alias, userArg)
}
