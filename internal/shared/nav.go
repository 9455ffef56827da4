package shared

// NavItem is one entry in the admin navigation menu.
type NavItem struct {
	Label string
	Path  string
}
