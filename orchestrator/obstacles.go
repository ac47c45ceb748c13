package orchestrator

import (
	"strings"

	"github.com/sightline-ai/sightline/gateway"
)

// Position is which side of the frame an obstacle sits on.
type Position string

// Horizontal positions.
const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// Distance is the bucketed proximity of an obstacle.
type Distance string

// Distance buckets, nearest first.
const (
	DistanceVeryNear Distance = "very near"
	DistanceNear     Distance = "near"
	DistanceFar      Distance = "far"
	DistanceVeryFar  Distance = "very far"
)

// Thresholds are the normalized-area cut points for distance bucketing.
// The precedence order is fixed; only the values are configurable.
type Thresholds struct {
	VeryNearArea float64
	NearArea     float64
	VeryFarArea  float64
}

// DefaultThresholds matches the served configuration defaults.
var DefaultThresholds = Thresholds{
	VeryNearArea: 0.5,
	NearArea:     0.05,
	VeryFarArea:  0.02,
}

// Observation is one interpreted detection region.
type Observation struct {
	Name       string
	Position   Position
	Distance   Distance
	Depth      float64
	Confidence float64
}

// classifyDistance buckets a normalized bounding-box area. The near bound is
// exclusive: area equal to NearArea is not "near".
func classifyDistance(area float64, t Thresholds) Distance {
	switch {
	case area > t.VeryNearArea:
		return DistanceVeryNear
	case area > t.NearArea:
		return DistanceNear
	case area < t.VeryFarArea:
		return DistanceVeryFar
	default:
		return DistanceFar
	}
}

// classifyPosition places the box center on the left or right half.
func classifyPosition(box gateway.BoundingBox) Position {
	if (box.Left+box.Right)/2 < 0.5 {
		return PositionLeft
	}
	return PositionRight
}

// Interpret turns raw detection regions into obstacle observations, keeping
// only labels in the allow-list. Region order is preserved.
func Interpret(regions []gateway.Region, t Thresholds, allowed map[string]struct{}) []Observation {
	var observations []Observation
	for _, region := range regions {
		area := (region.Box.Bottom - region.Box.Top) * (region.Box.Right - region.Box.Left)
		for _, concept := range region.Concepts {
			if _, ok := allowed[strings.ToLower(concept.Name)]; !ok {
				continue
			}
			observations = append(observations, Observation{
				Name:       concept.Name,
				Position:   classifyPosition(region.Box),
				Distance:   classifyDistance(area, t),
				Depth:      area,
				Confidence: concept.Value,
			})
		}
	}
	return observations
}

// WarningSentence renders observations into one spoken warning. Observations
// are grouped by position, left before right, each group listing its members
// in order.
func WarningSentence(observations []Observation) string {
	if len(observations) == 0 {
		return ""
	}

	var clauses []string
	for _, position := range []Position{PositionLeft, PositionRight} {
		var members []string
		for _, obs := range observations {
			if obs.Position == position {
				members = append(members, obs.Name+" "+string(obs.Distance))
			}
		}
		if len(members) == 0 {
			continue
		}

		verb := "is a"
		if len(members) > 1 {
			verb = "are"
		}
		clauses = append(clauses, "in front on your "+string(position)+
			" there "+verb+": "+strings.Join(members, ", "))
	}

	sentence := strings.Join(clauses, " and ")
	return strings.ToUpper(sentence[:1]) + sentence[1:]
}

// AllowSet lowercases an obstacle allow-list into a lookup set.
func AllowSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}
