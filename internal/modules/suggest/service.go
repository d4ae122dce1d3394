// README: Ranks likely destinations for a rider using a generative model.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"triply/internal/modules/place"
	"triply/internal/modules/trip"
	"triply/internal/types"
)

const maxSuggestions = 4

// coordEpsilon bounds how far a suggested location may drift from a
// submitted place before it is treated as hallucinated.
const coordEpsilon = 1e-6

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Ranker asks a generative model to pick likely next destinations from
// the rider's saved places, informed by recent trip history. It degrades
// to no suggestions on any failure.
type Ranker struct {
	gen Generator
	log *logrus.Logger
}

func NewRanker(gen Generator, log *logrus.Logger) *Ranker {
	if log == nil {
		log = logrus.New()
	}
	return &Ranker{gen: gen, log: log}
}

// tripHint is the minimized view of a past trip sent to the model:
// destination address and local time only.
type tripHint struct {
	To   string `json:"to"`
	When string `json:"when"`
}

// placeHint is the minimized view of a saved place sent to the model.
type placeHint struct {
	Name     string         `json:"name"`
	Type     place.Category `json:"type"`
	Address  string         `json:"address"`
	Location types.GeoPoint `json:"location"`
}

// Rank returns up to maxSuggestions destination suggestions. Every
// returned location is guaranteed to match one of the submitted saved
// places; anything else the model invents is dropped.
func (r *Ranker) Rank(ctx context.Context, trips []*trip.Trip, places []*place.SavedPlace, now time.Time) []Suggestion {
	if r.gen == nil || len(places) == 0 {
		return nil
	}

	prompt := buildPrompt(trips, places, now)

	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		r.log.WithError(err).Warn("suggestion generation failed")
		return nil
	}

	var out []Suggestion
	if err := json.Unmarshal([]byte(cleanJSONString(raw)), &out); err != nil {
		r.log.WithError(err).Warn("suggestion response was not valid JSON")
		return nil
	}

	kept := make([]Suggestion, 0, len(out))
	for _, s := range out {
		p := matchPlace(places, s.Location)
		if p == nil {
			continue
		}
		s.Location = p.Location
		if s.Icon == "" {
			s.Icon = place.CategoryIcons[p.Category]
		}
		kept = append(kept, s)
		if len(kept) == maxSuggestions {
			break
		}
	}
	return kept
}

// matchPlace finds the submitted place whose coordinates the suggestion
// points at, or nil if the model made the location up.
func matchPlace(places []*place.SavedPlace, loc types.GeoPoint) *place.SavedPlace {
	for _, p := range places {
		if math.Abs(p.Location.Lat-loc.Lat) < coordEpsilon && math.Abs(p.Location.Lng-loc.Lng) < coordEpsilon {
			return p
		}
	}
	return nil
}

func buildPrompt(trips []*trip.Trip, places []*place.SavedPlace, now time.Time) string {
	hints := make([]tripHint, 0, len(trips))
	for _, t := range trips {
		hints = append(hints, tripHint{
			To:   t.Dropoff.Address,
			When: t.CreatedAt.Format(time.RFC3339),
		})
	}
	placeHints := make([]placeHint, 0, len(places))
	for _, p := range places {
		placeHints = append(placeHints, placeHint{
			Name:     p.Name,
			Type:     p.Category,
			Address:  p.Address,
			Location: p.Location,
		})
	}

	historyJSON, _ := json.Marshal(hints)
	placesJSON, _ := json.Marshal(placeHints)

	var b strings.Builder
	fmt.Fprintf(&b, `Role: You rank likely next destinations for a ride-hailing rider.
Current Time: %s

Recent trips (destination and time only):
%s

Saved places the rider can go to:
%s

RULES:
1. Pick at most %d of the SAVED PLACES above as suggestions, most likely first.
2. Use the time of day and trip history to decide (e.g. work on weekday mornings, home in the evening).
3. You MUST copy each suggestion's "location" EXACTLY from the saved place. Never invent coordinates.
4. "subtitle" is one short reason, e.g. "You usually head here around this time".

Output JSON Schema:
[
  {
    "title": "string (saved place name)",
    "subtitle": "string",
    "icon": "string (emoji, may be empty)",
    "location": {"lat": number, "lng": number, "address": "string"}
  }
]
`, now.Format(time.RFC3339), historyJSON, placesJSON, maxSuggestions)
	return b.String()
}
