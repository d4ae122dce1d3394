// README: Saved place aggregate and categories.
package place

import "triply/internal/types"

type Category string

const (
	CategoryHome    Category = "home"
	CategoryWork    Category = "work"
	CategoryGym     Category = "gym"
	CategoryGeneric Category = "generic"
)

// CategoryIcons maps each category to its display glyph.
var CategoryIcons = map[Category]string{
	CategoryHome:    "🏠",
	CategoryWork:    "🏢",
	CategoryGym:     "🏋️",
	CategoryGeneric: "📍",
}

func KnownCategory(c Category) bool {
	_, ok := CategoryIcons[c]
	return ok
}

// SavedPlace is rider-owned, created and deleted explicitly, with a
// lifecycle independent of any trip.
type SavedPlace struct {
	ID       types.ID
	OwnerID  types.ID
	Name     string
	Address  string
	Location types.GeoPoint
	Category Category
}
