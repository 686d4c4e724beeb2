// AngelaMos | 2026
// rule.go

package access

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionDelete, ActionRestore:
		return true
	}
	return false
}

// Facts is what the store knows about one (user, installation) pair.
type Facts struct {
	InstallationID string  `db:"installation_id"`
	CreatorID      string  `db:"creator_id"`
	BranchID       *string `db:"branch_id"`
	Status         string  `db:"status"`
	Creator        bool    `db:"is_creator"`
	Grant          bool    `db:"has_grant"`
	SameBranch     bool    `db:"same_branch"`
}

func (f *Facts) Deleted() bool {
	return f.Status == StatusDeleted
}

const StatusDeleted = "deleted"

// Rule is an access predicate with two renderings: Allow evaluates loaded
// facts, SQL renders a boolean condition over an installations alias so list
// queries filter in the database. Both must agree for every row.
type Rule interface {
	Allow(f Facts) bool
	SQL(alias, userArg string) string
}

type atom struct {
	name  string
	allow func(Facts) bool
	sql   func(alias, userArg string) string
}

func (a atom) Allow(f Facts) bool { return a.allow(f) }

func (a atom) SQL(alias, userArg string) string { return a.sql(alias, userArg) }

func (a atom) String() string { return a.name }

var (
	// Creator holds when the caller created the installation.
	Creator Rule = atom{
		name:  "creator",
		allow: func(f Facts) bool { return f.Creator },
		sql: func(alias, userArg string) string {
			return fmt.Sprintf("%s.creator_id = %s", alias, userArg)
		},
	}

	// Granted holds when an explicit access grant pairs the caller with the
	// installation.
	Granted Rule = atom{
		name:  "grant",
		allow: func(f Facts) bool { return f.Grant },
		sql: func(alias, userArg string) string {
			return fmt.Sprintf(
				"EXISTS (SELECT 1 FROM installation_grants g "+
					"WHERE g.installation_id = %s.id AND g.user_id = %s)",
				alias, userArg,
			)
		},
	}

	// SameBranch holds when caller and installation carry the same non-null
	// branch. A caller without a branch never matches.
	SameBranch Rule = atom{
		name:  "same_branch",
		allow: func(f Facts) bool { return f.SameBranch },
		sql: func(alias, userArg string) string {
			return fmt.Sprintf(
				"EXISTS (SELECT 1 FROM users bu "+
					"WHERE bu.id = %s AND bu.branch_id IS NOT NULL "+
					"AND bu.branch_id = %s.branch_id)",
				userArg, alias,
			)
		},
	}
)

type anyOf []Rule

// AnyOf holds when at least one rule holds. An empty AnyOf denies.
func AnyOf(rules ...Rule) Rule { return anyOf(rules) }

func (r anyOf) Allow(f Facts) bool {
	for _, rule := range r {
		if rule.Allow(f) {
			return true
		}
	}
	return false
}

func (r anyOf) SQL(alias, userArg string) string {
	return join(r, " OR ", "FALSE", alias, userArg)
}

type allOf []Rule

// AllOf holds when every rule holds. An empty AllOf allows.
func AllOf(rules ...Rule) Rule { return allOf(rules) }

func (r allOf) Allow(f Facts) bool {
	for _, rule := range r {
		if !rule.Allow(f) {
			return false
		}
	}
	return true
}

func (r allOf) SQL(alias, userArg string) string {
	return join(r, " AND ", "TRUE", alias, userArg)
}

func join(rules []Rule, op, empty, alias, userArg string) string {
	if len(rules) == 0 {
		return empty
	}

	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		parts = append(parts, rule.SQL(alias, userArg))
	}

	return "(" + strings.Join(parts, op) + ")"
}
