package geo

import (
	"errors"
	"testing"

	"github.com/OCAP2/arena/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

func TestPointRoundTrip(t *testing.T) {
	v, ok := Vec(Point(core.Vec2{X: 100.5, Y: -200.25}))
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if v.X != 100.5 || v.Y != -200.25 {
		t.Errorf("expected (100.5,-200.25), got %+v", v)
	}
}

func TestVec_EmptyPoint(t *testing.T) {
	if _, ok := Vec(geom.NewEmptyPoint(geom.DimXY)); ok {
		t.Error("expected empty point to report !ok")
	}
}

func TestParseVec(t *testing.T) {
	v, err := ParseVec(" 10, 20.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != (core.Vec2{X: 10, Y: 20.5}) {
		t.Errorf("unexpected vec %+v", v)
	}

	for _, in := range []string{"", "1", "a,b", "1,2,3"} {
		if _, err := ParseVec(in); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}
