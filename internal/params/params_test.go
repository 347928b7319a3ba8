package params

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleFile = `distanceToGoThreshold          :5.00
distanceFromStartThreshold     :1.00
angleToTurnThreshold           :10.00
dotProductThreshold            :0.50
sideDotProductValueCount       :3
centerDotProductValueCount     :1
turningWeight                  :0.70
distanceFromPreviousThreshold  :5.25
turningAngle                   :30.00
multiTurnThreshold             :45.00
usingGps                       :1
manual                         :0
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Parameters.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestLoadFixedOrder(t *testing.T) {
	p, err := Load(writeSample(t, sampleFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.DistanceToGoThreshold != 5.0 {
		t.Fatalf("DistanceToGoThreshold = %f", p.DistanceToGoThreshold)
	}
	if p.DotProductThreshold != 0.5 {
		t.Fatalf("DotProductThreshold = %f", p.DotProductThreshold)
	}
	if p.SideValueCount != 3 || p.CenterValueCount != 1 {
		t.Fatalf("value counts = %d/%d", p.SideValueCount, p.CenterValueCount)
	}
	if p.TurningWeight != 0.7 {
		t.Fatalf("TurningWeight = %f", p.TurningWeight)
	}
	if !p.UsingGps || p.Manual {
		t.Fatalf("flags = gps:%v manual:%v", p.UsingGps, p.Manual)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTruncatedFile(t *testing.T) {
	if _, err := Load(writeSample(t, "dotProductThreshold :0.5\n")); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestLoadBadValue(t *testing.T) {
	bad := sampleFile[:len(sampleFile)-len("manual                         :0\n")] +
		"manual                         :maybe\n"
	if _, err := Load(writeSample(t, bad)); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}
