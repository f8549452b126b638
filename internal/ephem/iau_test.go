package ephem

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
)

func TestBuildOrientationSeries(t *testing.T) {
	earth := BodiesByNAIF[NAIFEarth]
	start := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * 24 * time.Hour)

	s, err := BuildOrientationSeries(context.Background(), earth, start, end, 24*time.Hour, DefaultDeltaT)
	if err != nil {
		t.Fatalf("BuildOrientationSeries() error = %v", err)
	}
	if s.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", s.Len())
	}

	first := s.First()
	if first.TimeTDB != astro.J2000JD {
		t.Errorf("first TimeTDB = %v, want J2000", first.TimeTDB)
	}
	if first.DeltaT != DefaultDeltaT {
		t.Errorf("DeltaT = %v", first.DeltaT)
	}
	if first.W != 190.147 {
		t.Errorf("W at J2000 = %v, want 190.147", first.W)
	}

	// W increases every sample, so linear interpolation never wraps.
	for i := 1; i < s.Len(); i++ {
		if s.At(i).W <= s.At(i-1).W {
			t.Fatalf("W not increasing at %d", i)
		}
	}

	// The pole barely moves over ten days.
	drift := s.Last().Pole.Sub(first.Pole).Norm()
	if drift > 1e-5 {
		t.Errorf("pole drift = %v", drift)
	}
	if math.Abs(first.Pole.Norm()-1) > 1e-12 {
		t.Errorf("|pole| = %v", first.Pole.Norm())
	}
}

func TestBuildOrientationTableRecords(t *testing.T) {
	moon := BodiesByNAIF[NAIFMoon]
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tbl, err := BuildOrientationTable(context.Background(), moon, start, start.Add(48*time.Hour), 24*time.Hour, 69.184)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Data) != 3 {
		t.Fatalf("rows = %d, want 3", len(tbl.Data))
	}
	rec := tbl.Data[1]
	if rec.Date != "2024-03-02 00:00:00" {
		t.Errorf("Date = %q", rec.Date)
	}
	if rec.RA == nil || *rec.RA < 0 || *rec.RA >= 360 {
		t.Errorf("RA = %v, want [0, 360)", rec.RA)
	}
	if tbl.BodyID != "301" || tbl.TimeStep != "1d" {
		t.Errorf("metadata = %+v", tbl)
	}
}

func TestBuildOrientationTableUnknownBody(t *testing.T) {
	mars := BodyInfo{Name: "Mars", NAIFID: 499}
	now := time.Now()
	if _, err := BuildOrientationTable(context.Background(), mars, now, now.Add(time.Hour), time.Hour, 0); err == nil {
		t.Error("expected error for body without rotation model")
	}
}

func TestBuildOrientationTableCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	now := time.Now()
	_, err := BuildOrientationTable(ctx, BodiesByNAIF[NAIFSun], now, now.Add(48*time.Hour), time.Hour, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestIAUModelRejectsEphemeris(t *testing.T) {
	m := NewIAUModel(DefaultDeltaT)
	now := time.Now()
	_, err := m.Table(context.Background(), Request{
		Body: BodiesByNAIF[NAIFEarth], Start: now, End: now.Add(time.Hour), Step: time.Hour, Kind: KindEphemeris,
	})
	if err == nil {
		t.Error("expected error for ephemeris request")
	}
}

func TestFillRotation(t *testing.T) {
	tbl := &Table{Data: []Record{
		{JDTDB: ptr(astro.J2000JD + 1), X: ptr(0), Y: ptr(0), Z: ptr(6356.8)},
		{JDTDB: ptr(astro.J2000JD + 2), PoleVec: []float64{0, 0, 1}, W: ptr(5)},
	}}
	if err := FillRotation(tbl, NAIFEarth); err != nil {
		t.Fatal(err)
	}
	if got := tbl.Data[0].PoleVec; len(got) != 3 || got[2] != 1 {
		t.Errorf("PoleVec = %v, want [0 0 1]", got)
	}
	if want := earthW(astro.J2000JD + 1); *tbl.Data[0].W != want {
		t.Errorf("W = %v, want %v", *tbl.Data[0].W, want)
	}
	if *tbl.Data[1].W != 5 {
		t.Errorf("existing W overwritten: %v", *tbl.Data[1].W)
	}

	if err := FillRotation(&Table{Data: []Record{{JDTDB: ptr(1)}}}, NAIFEarth); !errors.Is(err, ErrBadRecord) {
		t.Errorf("missing pole error = %v, want ErrBadRecord", err)
	}
}

func earthW(jd float64) float64 {
	return astro.EarthRotation.W(jd)
}
