package ephem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/litescript/ls-orrery/internal/astro"
)

// ErrBadRecord is returned when a table record is missing a required field.
var ErrBadRecord = errors.New("bad ephemeris record")

// Table is the persisted form of a series: a JSON document with
// acquisition metadata and one record per sample.
type Table struct {
	Name     string   `json:"name"`
	Command  string   `json:"command,omitempty"`
	BodyID   string   `json:"bodyID,omitempty"`
	TimeStep string   `json:"timeStep"`
	Center   string   `json:"center"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Data     []Record `json:"data"`
}

// Record is one row of a Table. Ephemeris rows carry x..vz; orientation
// rows carry pole_vec and w (or x, y, z for the pole when pole_vec is absent).
type Record struct {
	Date    string    `json:"date,omitempty"`
	JDTDB   *float64  `json:"jdTDB"`
	DeltaT  *float64  `json:"deltaT,omitempty"`
	X       *float64  `json:"x,omitempty"`
	Y       *float64  `json:"y,omitempty"`
	Z       *float64  `json:"z,omitempty"`
	VX      *float64  `json:"vx,omitempty"`
	VY      *float64  `json:"vy,omitempty"`
	VZ      *float64  `json:"vz,omitempty"`
	PoleVec []float64 `json:"pole_vec,omitempty"`
	RA      *float64  `json:"ra,omitempty"`
	Dec     *float64  `json:"dec,omitempty"`
	W       *float64  `json:"w,omitempty"`
}

// ReadTable decodes a table document.
func ReadTable(r io.Reader) (*Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return &t, nil
}

// LoadTable reads a table document from disk.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTable encodes t as indented JSON.
func WriteTable(w io.Writer, t *Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// WriteFile writes t to path, creating parent directories as needed.
func WriteFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadEphemeris decodes a table and builds a validated ephemeris series.
func ReadEphemeris(r io.Reader) (*EphemerisSeries, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return t.EphemerisSeries()
}

// LoadEphemerisFile loads a validated ephemeris series from disk.
func LoadEphemerisFile(path string) (*EphemerisSeries, error) {
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	s, err := t.EphemerisSeries()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadOrientationFile loads a validated orientation series from disk.
func LoadOrientationFile(path string) (*OrientationSeries, error) {
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	s, err := t.OrientationSeries()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// EphemerisSeries converts the table rows into a validated series.
func (t *Table) EphemerisSeries() (*EphemerisSeries, error) {
	samples := make([]EphemerisSample, 0, len(t.Data))
	for i, rec := range t.Data {
		s, err := rec.ephemerisSample()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return NewEphemerisSeries(samples)
}

// OrientationSeries converts the table rows into a validated series.
func (t *Table) OrientationSeries() (*OrientationSeries, error) {
	samples := make([]OrientationSample, 0, len(t.Data))
	for i, rec := range t.Data {
		s, err := rec.orientationSample()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return NewOrientationSeries(samples)
}

func (r Record) ephemerisSample() (EphemerisSample, error) {
	vals, err := require(map[string]*float64{
		"jdTDB": r.JDTDB,
		"x":     r.X, "y": r.Y, "z": r.Z,
		"vx": r.VX, "vy": r.VY, "vz": r.VZ,
	})
	if err != nil {
		return EphemerisSample{}, err
	}
	return EphemerisSample{
		TimeTDB:  vals["jdTDB"],
		DeltaT:   optional(r.DeltaT),
		Position: astro.Vec3{X: vals["x"], Y: vals["y"], Z: vals["z"]},
		Velocity: astro.Vec3{X: vals["vx"], Y: vals["vy"], Z: vals["vz"]},
	}, nil
}

func (r Record) orientationSample() (OrientationSample, error) {
	fields := map[string]*float64{"jdTDB": r.JDTDB, "w": r.W}
	switch {
	case len(r.PoleVec) == 3:
		fields["pole_vec[0]"] = &r.PoleVec[0]
		fields["pole_vec[1]"] = &r.PoleVec[1]
		fields["pole_vec[2]"] = &r.PoleVec[2]
	case r.PoleVec != nil:
		return OrientationSample{}, fmt.Errorf("%w: pole_vec has %d components", ErrBadRecord, len(r.PoleVec))
	default:
		fields["pole_vec[0]"], fields["pole_vec[1]"], fields["pole_vec[2]"] = r.X, r.Y, r.Z
	}

	vals, err := require(fields)
	if err != nil {
		return OrientationSample{}, err
	}
	return OrientationSample{
		TimeTDB: vals["jdTDB"],
		DeltaT:  optional(r.DeltaT),
		Pole:    astro.Vec3{X: vals["pole_vec[0]"], Y: vals["pole_vec[1]"], Z: vals["pole_vec[2]"]},
		W:       vals["w"],
	}, nil
}

func require(fields map[string]*float64) (map[string]float64, error) {
	out := make(map[string]float64, len(fields))
	for name, p := range fields {
		if p == nil {
			return nil, fmt.Errorf("%w: missing %s", ErrBadRecord, name)
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrBadRecord, name)
		}
		out[name] = *p
	}
	return out, nil
}

func optional(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func ptr(v float64) *float64 { return &v }

// EphemerisRecord encodes a sample as a table row.
func EphemerisRecord(s EphemerisSample) Record {
	return Record{
		JDTDB:  ptr(s.TimeTDB),
		DeltaT: ptr(s.DeltaT),
		X:      ptr(s.Position.X), Y: ptr(s.Position.Y), Z: ptr(s.Position.Z),
		VX: ptr(s.Velocity.X), VY: ptr(s.Velocity.Y), VZ: ptr(s.Velocity.Z),
	}
}

// OrientationRecord encodes a sample as a table row. RA and Dec are the
// equatorial coordinates of the pole, included for reference.
func OrientationRecord(s OrientationSample, date string, raDeg, decDeg float64) Record {
	return Record{
		Date:    date,
		JDTDB:   ptr(s.TimeTDB),
		DeltaT:  ptr(s.DeltaT),
		PoleVec: []float64{s.Pole.X, s.Pole.Y, s.Pole.Z},
		RA:      ptr(raDeg),
		Dec:     ptr(decDeg),
		W:       ptr(s.W),
	}
}
