package domain

import "github.com/google/uuid"

// Canonical column titles for boards whose lists were never initialized.
// The default set is substituted on read, never persisted on behalf of the
// client.
var defaultListTitles = [...]string{"Por hacer", "En progreso", "Hecho"}

// DefaultLists builds the canonical three-column layout with freshly minted
// list IDs and no tasks.
func DefaultLists() []List {
	lists := make([]List, 0, len(defaultListTitles))
	for _, title := range defaultListTitles {
		lists = append(lists, List{
			ID:    uuid.NewString(),
			Title: title,
			Tasks: []Task{},
		})
	}
	return lists
}
