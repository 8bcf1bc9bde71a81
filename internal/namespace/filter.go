package namespace

import "muster/internal/domain"

// Filter answers "is this tool enabled for this project/server" using a
// project's ToolPreference overrides, defaulting to enabled when no
// preference row exists (spec.md §4.D).
type Filter struct {
	// disabled holds the (serverID, toolName) pairs explicitly disabled
	// for one project; absence means enabled.
	disabled map[string]bool
}

// NewFilter builds a Filter from a project's preference rows.
func NewFilter(prefs []domain.ToolPreference) *Filter {
	f := &Filter{disabled: make(map[string]bool)}
	for _, p := range prefs {
		if !p.IsEnabled {
			f.disabled[filterKey(p.ServerID, p.ToolName)] = true
		}
	}
	return f
}

// Enabled reports whether toolName on serverID is enabled for this
// project. Tools with no preference row are enabled by default.
func (f *Filter) Enabled(serverID, toolName string) bool {
	return !f.disabled[filterKey(serverID, toolName)]
}

func filterKey(serverID, toolName string) string {
	return serverID + "\x00" + toolName
}
