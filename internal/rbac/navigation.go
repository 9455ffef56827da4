package rbac

import (
	"context"
	"log/slog"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// DefaultMenu lists every navigable section; Navigation filters it per
// principal before rendering.
func DefaultMenu() []shared.NavItem {
	return []shared.NavItem{
		{Label: "Dashboard", Path: "/"},
		{Label: "Users", Path: "/users"},
		{Label: "Roles", Path: "/roles"},
		{Label: "Permissions", Path: "/permissions"},
		{Label: "Pages", Path: "/pages"},
		{Label: "Tickets", Path: "/tickets"},
		{Label: "Audit", Path: "/audit"},
	}
}

// Navigation filters menu items through the same decision function the
// request gate uses, so links a principal cannot follow never render.
type Navigation struct {
	access *AccessService
	logger *slog.Logger
	menu   []shared.NavItem
}

// NewNavigation builds a Navigation over the decision service.
func NewNavigation(access *AccessService, logger *slog.Logger, menu []shared.NavItem) *Navigation {
	if logger == nil {
		logger = slog.Default()
	}
	if menu == nil {
		menu = DefaultMenu()
	}
	return &Navigation{access: access, logger: logger, menu: menu}
}

// Menu returns the items the principal may reach. A decision error hides the
// item rather than exposing it. Anonymous principals see nothing.
func (n *Navigation) Menu(ctx context.Context, principal *shared.Principal) []shared.NavItem {
	if principal == nil {
		return nil
	}
	if principal.SuperUser {
		return n.menu
	}
	visible := make([]shared.NavItem, 0, len(n.menu))
	for _, item := range n.menu {
		allowed, err := n.access.Decide(ctx, item.Path, principal.Roles)
		if err != nil {
			n.logger.Warn("navigation decision failed, hiding item",
				slog.String("path", item.Path), slog.Any("error", err))
			continue
		}
		if allowed {
			visible = append(visible, item)
		}
	}
	return visible
}
