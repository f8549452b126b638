package ephem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// HorizonsAPIURL is the JPL Horizons API endpoint.
	HorizonsAPIURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

	// RequestTimeout is the default HTTP request timeout.
	RequestTimeout = 30 * time.Second
)

// ErrNoDataMarkers is returned when a Horizons result lacks $$SOE/$$EOE.
var ErrNoDataMarkers = errors.New("could not find ephemeris data markers")

// TableKind selects which VECTORS table Horizons returns.
type TableKind int

const (
	// KindEphemeris requests position and velocity (VEC_TABLE=3).
	KindEphemeris TableKind = iota
	// KindOrientation requests a position-only vector (VEC_TABLE=1), used
	// with a body-fixed site to sample the pole direction.
	KindOrientation
)

// String returns the kind name.
func (k TableKind) String() string {
	switch k {
	case KindEphemeris:
		return "ephemeris"
	case KindOrientation:
		return "orientation"
	default:
		return "unknown"
	}
}

// HorizonsQuery describes one VECTORS request.
type HorizonsQuery struct {
	Name     string // display name stored in the table
	Command  string // Horizons COMMAND, e.g. "399" or "'g:0,90,0@399'"
	Center   string // Horizons CENTER, e.g. "@0"
	Start    string // START_TIME, e.g. "1990-01-01"
	End      string // STOP_TIME
	TimeStep string // STEP_SIZE, e.g. "1d"
	Kind     TableKind
}

// HorizonsFetcher downloads VECTORS tables from JPL Horizons.
type HorizonsFetcher struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// HorizonsOption configures a HorizonsFetcher.
type HorizonsOption func(*HorizonsFetcher)

// WithURL overrides the Horizons endpoint.
func WithURL(u string) HorizonsOption {
	return func(f *HorizonsFetcher) {
		f.url = u
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) HorizonsOption {
	return func(f *HorizonsFetcher) {
		f.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HorizonsOption {
	return func(f *HorizonsFetcher) {
		f.client = c
	}
}

// NewHorizonsFetcher creates a Horizons client.
func NewHorizonsFetcher(opts ...HorizonsOption) *HorizonsFetcher {
	f := &HorizonsFetcher{
		url:     HorizonsAPIURL,
		timeout: RequestTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// Name returns the source name for display/logging.
func (f *HorizonsFetcher) Name() string {
	return "Horizons"
}

// Fetch runs q against Horizons and returns the parsed table.
func (f *HorizonsFetcher) Fetch(ctx context.Context, q HorizonsQuery) (*Table, error) {
	reqURL := f.url + "?" + q.params().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ls-orrery/1.0 (ephemeris tables)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("horizons request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("horizons returned status %d: %s", resp.StatusCode, string(body))
	}

	return ParseHorizonsResponse(q, body)
}

func (q HorizonsQuery) params() url.Values {
	vecTable := "3"
	if q.Kind == KindOrientation {
		vecTable = "1"
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("COMMAND", q.Command)
	params.Set("OBJ_DATA", "NO")
	params.Set("MAKE_EPHEM", "YES")
	params.Set("EPHEM_TYPE", "VECTORS")
	params.Set("CENTER", q.Center)
	params.Set("START_TIME", q.Start)
	params.Set("STOP_TIME", q.End)
	params.Set("STEP_SIZE", fmt.Sprintf("'%s'", q.TimeStep))
	params.Set("OUT_UNITS", "KM-S")
	params.Set("REF_PLANE", "ECLIPTIC")
	params.Set("REF_SYSTEM", "ICRF")
	params.Set("VEC_CORR", "NONE")
	params.Set("VEC_DELTA_T", "YES")
	params.Set("VEC_TABLE", vecTable)
	params.Set("CSV_FORMAT", "YES")
	params.Set("TIME_TYPE", "TDB")
	params.Set("EXTRA_PREC", "YES")
	return params
}

// horizonsResponse represents the JSON API response.
type horizonsResponse struct {
	Signature struct {
		Version string `json:"version"`
		Source  string `json:"source"`
	} `json:"signature"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

// ParseHorizonsResponse decodes a JSON API response and parses its result text.
func ParseHorizonsResponse(q HorizonsQuery, body []byte) (*Table, error) {
	var resp horizonsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("horizons error: %s", resp.Error)
	}
	return ParseVectors(q, resp.Result)
}

// ParseVectors extracts CSV vector rows between $$SOE and $$EOE.
// Columns: JDTDB, calendar date, delta-T, X, Y, Z[, VX, VY, VZ, ...].
func ParseVectors(q HorizonsQuery, result string) (*Table, error) {
	soeIdx := strings.Index(result, "$$SOE")
	eoeIdx := strings.Index(result, "$$EOE")
	if soeIdx == -1 || eoeIdx == -1 || soeIdx >= eoeIdx {
		return nil, ErrNoDataMarkers
	}

	t := &Table{
		Name:     q.Name,
		Command:  q.Command,
		TimeStep: q.TimeStep,
		Center:   q.Center,
		Start:    q.Start,
		End:      q.End,
	}

	for n, line := range strings.Split(result[soeIdx+5:eoeIdx], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec, err := parseVectorLine(line, q.Kind)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		t.Data = append(t.Data, rec)
	}

	return t, nil
}

func parseVectorLine(line string, kind TableKind) (Record, error) {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	want := 9
	if kind == KindOrientation {
		want = 6
	}
	if len(parts) < want {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrBadRecord, len(parts), want)
	}

	nums := make([]float64, want)
	for i := 0; i < want; i++ {
		if i == 1 {
			continue // calendar date
		}
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: column %d: %v", ErrBadRecord, i, err)
		}
		nums[i] = v
	}

	rec := Record{
		Date:   strings.TrimPrefix(parts[1], "A.D. "),
		JDTDB:  ptr(nums[0]),
		DeltaT: ptr(nums[2]),
		X:      ptr(nums[3]),
		Y:      ptr(nums[4]),
		Z:      ptr(nums[5]),
	}
	if kind == KindEphemeris {
		rec.VX, rec.VY, rec.VZ = ptr(nums[6]), ptr(nums[7]), ptr(nums[8])
	}
	return rec, nil
}
