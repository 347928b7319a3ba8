// Package params loads the navigation tunables from the external
// configuration collaborator's file: colon-delimited, human readable, with a
// fixed field order and no validation beyond parsing. The navigation engine
// reloads it on request at runtime.
package params

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Parameters holds every tunable the navigation engine consumes.
type Parameters struct {
	// DistanceToGoThreshold is the arrival radius in meters; inside it the
	// rover considers itself at the destination.
	DistanceToGoThreshold float64
	// DistanceFromStartThreshold is retained for file compatibility, unused.
	DistanceFromStartThreshold float64
	// AngleToTurnThreshold is retained for file compatibility, unused.
	AngleToTurnThreshold float64
	// DotProductThreshold is the safety ceiling for the center score; at or
	// above it the rover looks for a turn.
	DotProductThreshold float64
	// SideValueCount is the moving-average depth for the side scores.
	SideValueCount int
	// CenterValueCount is the moving-average depth for the center score.
	CenterValueCount int
	// TurningWeight biases scores when a bearing correction is pending;
	// raised to the estimated turn count for multi-step turns.
	TurningWeight float64
	// DistanceFromPreviousThreshold is how far past the last checkpoint the
	// rover must travel before computing a new bearing correction, meters.
	DistanceFromPreviousThreshold float64
	// TurningAngle seeds the minimum reliable single-turn angle in degrees,
	// used until (or instead of) the calibration run measures the real one.
	TurningAngle float64
	// MultiTurnThreshold is retained for file compatibility, unused.
	MultiTurnThreshold float64
	// UsingGps gates the whole GPS correction path.
	UsingGps bool
	// Manual starts the rover in manual mode.
	Manual bool
}

// Load reads the parameters file. Fields must appear in the fixed order the
// collaborator writes them; names to the left of each colon are ignored.
func Load(path string) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("params: %w", err)
	}
	defer f.Close()

	values, err := readValues(f)
	if err != nil {
		return Parameters{}, err
	}
	const fieldCount = 12
	if len(values) < fieldCount {
		return Parameters{}, fmt.Errorf("params: expected %d fields, got %d", fieldCount, len(values))
	}

	var p Parameters
	var errs []error
	next := func() string {
		v := values[0]
		values = values[1:]
		return v
	}
	getFloat := func() float64 {
		v, err := strconv.ParseFloat(next(), 64)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	getInt := func() int {
		v, err := strconv.Atoi(next())
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	p.DistanceToGoThreshold = getFloat()
	p.DistanceFromStartThreshold = getFloat()
	p.AngleToTurnThreshold = getFloat()
	p.DotProductThreshold = getFloat()
	p.SideValueCount = getInt()
	p.CenterValueCount = getInt()
	p.TurningWeight = getFloat()
	p.DistanceFromPreviousThreshold = getFloat()
	p.TurningAngle = getFloat()
	p.MultiTurnThreshold = getFloat()
	p.UsingGps = getInt() != 0
	p.Manual = getInt() != 0

	if len(errs) > 0 {
		return Parameters{}, fmt.Errorf("params: bad value: %w", errs[0])
	}
	return p, nil
}

// readValues collects everything after each colon, one value per line.
func readValues(f *os.File) ([]string, error) {
	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		values = append(values, strings.TrimSpace(line[idx+1:]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return values, nil
}

// Default returns the parameter set used when no file is configured, tuned
// for the simulated rover.
func Default() Parameters {
	return Parameters{
		DistanceToGoThreshold:         5.0,
		DotProductThreshold:           0.5,
		SideValueCount:                3,
		CenterValueCount:              3,
		TurningWeight:                 0.7,
		DistanceFromPreviousThreshold: 5.25,
		TurningAngle:                  15.0,
		UsingGps:                      true,
	}
}
