// Package geo implements the great-circle and bearing math used by the
// navigation engine to stay pointed at a destination.
package geo

import (
	"math"

	"RoverCore/internal/model"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Distance returns the haversine great-circle distance between two positions
// in meters.
func Distance(p1, p2 model.Position) float64 {
	latDelta := toRad(float64(p1.Latitude - p2.Latitude))
	lonDelta := toRad(float64(p1.Longitude - p2.Longitude))

	sinLat := math.Sin(latDelta / 2)
	sinLon := math.Sin(lonDelta / 2)

	a := sinLat*sinLat +
		math.Cos(toRad(float64(p1.Latitude)))*
			math.Cos(toRad(float64(p2.Latitude)))*
			sinLon*sinLon

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// interior angle at the current position from the law of cosines over the
// triangle side lengths.
func degreeTurn(a, b, c float64) float64 {
	cosValue := -(c*c - a*a - b*b) / (2 * a * b)
	return math.Acos(cosValue)
}

// TurnAngle returns the signed bearing correction in degrees needed to point
// from the current heading (the checkpoint->current line) toward the
// destination. Negative means turn left, positive turn right, matching the
// engine's convention. The magnitude comes from the law of cosines over the
// checkpoint/current/destination triangle; the sign from which side of the
// travel line the destination falls on.
func TurnAngle(current, checkpoint, destination model.Position) float64 {
	// move the checkpoint to the origin so the travel line passes through it
	cur := translate(current, checkpoint)
	dst := translate(destination, checkpoint)
	org := model.Position{}

	dTraveled := Distance(cur, org)
	dCheckpointToDest := Distance(org, dst)
	dCurrentToDest := Distance(cur, dst)

	slope := float64(cur.Latitude) / float64(cur.Longitude)
	pointOnLine := slope * float64(dst.Longitude)

	// the value itself is meaningless, only its sign matters
	side := (float64(dst.Latitude) - pointOnLine) * float64(cur.Latitude)

	var sign float64
	if slope < 0 {
		if side < 0 {
			sign = -1
		} else {
			sign = 1
		}
	} else {
		if side < 0 {
			sign = 1
		} else {
			sign = -1
		}
	}

	return sign * (math.Pi - degreeTurn(dTraveled, dCurrentToDest, dCheckpointToDest)) * (180.0 / math.Pi)
}

func translate(p, origin model.Position) model.Position {
	return model.Position{
		Latitude:  p.Latitude - origin.Latitude,
		Longitude: p.Longitude - origin.Longitude,
	}
}
