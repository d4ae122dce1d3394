// README: Destination suggestion shapes returned by the ranker.
package suggest

import "triply/internal/types"

// Suggestion is a ranked destination hint. It is computed per request
// and never persisted.
type Suggestion struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	Icon     string         `json:"icon"`
	Location types.GeoPoint `json:"location"`
}
