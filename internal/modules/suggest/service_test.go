// README: Suggestion ranker tests (provenance filter, fail-soft, prompt hygiene).
package suggest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"triply/internal/modules/fare"
	"triply/internal/modules/place"
	"triply/internal/modules/trip"
	"triply/internal/types"
)

type stubGenerator struct {
	response string
	err      error
	prompt   string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.response, g.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testPlaces() []*place.SavedPlace {
	return []*place.SavedPlace{
		{
			ID: "p1", OwnerID: "r1", Name: "Home", Address: "12 Elm St",
			Location: types.GeoPoint{Lat: 25.031, Lng: 121.561, Address: "12 Elm St"},
			Category: place.CategoryHome,
		},
		{
			ID: "p2", OwnerID: "r1", Name: "Office", Address: "88 Tower Ave",
			Location: types.GeoPoint{Lat: 25.044, Lng: 121.572, Address: "88 Tower Ave"},
			Category: place.CategoryWork,
		},
	}
}

func testTrips() []*trip.Trip {
	return []*trip.Trip{
		{
			ID: "t1", RiderID: "r1",
			Pickup:       types.GeoPoint{Lat: 25.0, Lng: 121.5, Address: "Somewhere"},
			Dropoff:      types.GeoPoint{Lat: 25.044, Lng: 121.572, Address: "88 Tower Ave"},
			VehicleClass: fare.ClassCar,
			Status:       trip.StatusCompleted,
			CreatedAt:    time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		},
	}
}

func TestRanker_KeepsMatchingSuggestions(t *testing.T) {
	gen := &stubGenerator{response: `[
		{"title": "Office", "subtitle": "Your usual morning ride", "icon": "", "location": {"lat": 25.044, "lng": 121.572, "address": "88 Tower Ave"}}
	]`}
	r := NewRanker(gen, quietLogger())

	got := r.Rank(context.Background(), testTrips(), testPlaces(), time.Now())
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	if got[0].Title != "Office" {
		t.Errorf("title = %q", got[0].Title)
	}
	if got[0].Icon != place.CategoryIcons[place.CategoryWork] {
		t.Errorf("icon = %q, want work icon", got[0].Icon)
	}
	if got[0].Location.Address != "88 Tower Ave" {
		t.Errorf("location = %+v", got[0].Location)
	}
}

// A suggestion whose coordinates match no submitted place was invented by
// the model and must be dropped.
func TestRanker_DropsHallucinatedLocations(t *testing.T) {
	gen := &stubGenerator{response: `[
		{"title": "Home", "subtitle": "ok", "location": {"lat": 25.031, "lng": 121.561, "address": "12 Elm St"}},
		{"title": "Mystery Bar", "subtitle": "made up", "location": {"lat": 24.0, "lng": 120.0, "address": "1 Nowhere Ln"}}
	]`}
	r := NewRanker(gen, quietLogger())

	got := r.Rank(context.Background(), nil, testPlaces(), time.Now())
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	if got[0].Title != "Home" {
		t.Errorf("kept %q, want Home", got[0].Title)
	}
}

func TestRanker_FailsSoft(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"generation error", &stubGenerator{err: errors.New("model overloaded")}},
		{"malformed json", &stubGenerator{response: "certainly! here are your suggestions"}},
		{"json object not array", &stubGenerator{response: `{"title": "Home"}`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRanker(tc.gen, quietLogger())
			if got := r.Rank(context.Background(), testTrips(), testPlaces(), time.Now()); got != nil {
				t.Errorf("Rank = %v, want nil", got)
			}
		})
	}
}

func TestRanker_StripsMarkdownFences(t *testing.T) {
	gen := &stubGenerator{response: "```json\n[{\"title\": \"Home\", \"subtitle\": \"\", \"location\": {\"lat\": 25.031, \"lng\": 121.561, \"address\": \"12 Elm St\"}}]\n```"}
	r := NewRanker(gen, quietLogger())

	got := r.Rank(context.Background(), nil, testPlaces(), time.Now())
	if len(got) != 1 || got[0].Title != "Home" {
		t.Errorf("Rank = %+v, want the fenced suggestion", got)
	}
}

func TestRanker_NilGeneratorAndNoPlaces(t *testing.T) {
	r := NewRanker(nil, quietLogger())
	if got := r.Rank(context.Background(), testTrips(), testPlaces(), time.Now()); got != nil {
		t.Errorf("Rank with nil generator = %v, want nil", got)
	}

	gen := &stubGenerator{response: "[]"}
	r = NewRanker(gen, quietLogger())
	if got := r.Rank(context.Background(), testTrips(), nil, time.Now()); got != nil {
		t.Errorf("Rank with no places = %v, want nil", got)
	}
	if gen.prompt != "" {
		t.Error("generator called with no places to rank")
	}
}

// The prompt must carry only the minimized views: destination and time per
// trip, never pickups, prices, driver details, or trip ids.
func TestRanker_PromptDataMinimization(t *testing.T) {
	gen := &stubGenerator{response: "[]"}
	r := NewRanker(gen, quietLogger())

	trips := testTrips()
	trips[0].Price = 123.45
	trips[0].DriverInfo = &trip.DriverInfo{ID: "d9", Name: "Pat", VehiclePlate: "XYZ-789"}

	r.Rank(context.Background(), trips, testPlaces(), time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))

	p := gen.prompt
	if p == "" {
		t.Fatal("generator not called")
	}
	for _, want := range []string{"88 Tower Ave", "12 Elm St", "Home", "Office"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	for _, leak := range []string{"Somewhere", "123.45", "Pat", "XYZ-789", "t1", "d9"} {
		if strings.Contains(p, leak) {
			t.Errorf("prompt leaks %q", leak)
		}
	}
}
