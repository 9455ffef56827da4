package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

func TestMenuAnonymousSeesNothing(t *testing.T) {
	nav := NewNavigation(NewAccessService(&stubRuleStore{}), nil, nil)
	require.Nil(t, nav.Menu(context.Background(), nil))
}

func TestMenuSuperUserSeesEverything(t *testing.T) {
	// Rules that would hide every item are irrelevant to a super user.
	nav := NewNavigation(NewAccessService(&stubRuleStore{rules: map[string][]string{
		"/users": {}, "/roles": {}, "/audit": {},
	}}), nil, nil)

	items := nav.Menu(context.Background(), &shared.Principal{ID: 1, SuperUser: true})
	require.Equal(t, DefaultMenu(), items)
}

func TestMenuFiltersByDecision(t *testing.T) {
	nav := NewNavigation(NewAccessService(&stubRuleStore{rules: map[string][]string{
		"/users": {"Operator"},
		"/roles": {"Operator"},
		"/audit": {"Auditor"},
	}}), nil, []shared.NavItem{
		{Label: "Users", Path: "/users"},
		{Label: "Roles", Path: "/roles"},
		{Label: "Tickets", Path: "/tickets"},
		{Label: "Audit", Path: "/audit"},
	})

	items := nav.Menu(context.Background(), &shared.Principal{ID: 2, Roles: []string{"Operator"}})
	require.Equal(t, []shared.NavItem{
		{Label: "Users", Path: "/users"},
		{Label: "Roles", Path: "/roles"},
		{Label: "Tickets", Path: "/tickets"},
	}, items)
}

func TestMenuHidesItemOnDecisionError(t *testing.T) {
	nav := NewNavigation(NewAccessService(&stubRuleStore{err: context.DeadlineExceeded}), nil, []shared.NavItem{
		{Label: "Users", Path: "/users"},
	})

	items := nav.Menu(context.Background(), &shared.Principal{ID: 3, Roles: []string{"Operator"}})
	require.Empty(t, items)
}
