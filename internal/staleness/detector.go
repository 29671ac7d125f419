package staleness

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/aristath/fincache/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientHistory is returned when a record carries too few dated
// filings to estimate a cadence.
var ErrInsufficientHistory = errors.New("insufficient filing history")

const (
	minCadenceDates = 3
	// fullConfidenceIntervals is the number of observed intervals at which the
	// sample size stops reducing confidence (two years of quarterly reports).
	fullConfidenceIntervals = 8
)

// Cadence is the detector's view of a record's publication schedule.
type Cadence struct {
	Confidence              float64
	MeanInterval            time.Duration
	Intervals               int
	LastPublicationDate     *time.Time
	NextPublicationEstimate *time.Time
}

// Apply copies the publication hints onto entry metadata.
func (c Cadence) Apply(meta *domain.CacheMetadata) {
	meta.PublicationConfidence = c.Confidence
	meta.LastPublicationDate = c.LastPublicationDate
	meta.NextPublicationEstimate = c.NextPublicationEstimate
}

// CadenceAnalyzer derives publication hints from a record.
type CadenceAnalyzer interface {
	AnalyzeCadence(record *domain.FinancialRecord) (Cadence, error)
}

// AnalyzerFunc adapts a function to CadenceAnalyzer.
type AnalyzerFunc func(record *domain.FinancialRecord) (Cadence, error)

// AnalyzeCadence calls f(record).
func (f AnalyzerFunc) AnalyzeCadence(record *domain.FinancialRecord) (Cadence, error) {
	return f(record)
}

// Detector estimates the next filing date from the spacing of past filings.
type Detector struct{}

// NewDetector creates a publication cadence detector.
func NewDetector() *Detector {
	return &Detector{}
}

// AnalyzeCadence estimates when the next filing is due. Confidence falls with
// short histories and with irregular spacing (coefficient of variation).
func (d *Detector) AnalyzeCadence(record *domain.FinancialRecord) (Cadence, error) {
	if record == nil {
		return Cadence{}, errors.New("nil record")
	}

	dates := publicationDates(record)
	if len(dates) < minCadenceDates {
		return Cadence{}, ErrInsufficientHistory
	}

	intervals := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		intervals = append(intervals, dates[i].Sub(dates[i-1]).Hours()/24)
	}

	mean, stdDev := stat.MeanStdDev(intervals, nil)
	if mean <= 0 || math.IsNaN(mean) {
		return Cadence{}, ErrInsufficientHistory
	}

	cv := stdDev / mean
	if math.IsNaN(cv) {
		cv = 0
	}
	sampleFactor := math.Min(1, float64(len(intervals))/fullConfidenceIntervals)
	confidence := sampleFactor * math.Max(0, 1-cv)

	meanInterval := time.Duration(mean * 24 * float64(time.Hour))
	last := dates[len(dates)-1]
	next := last.Add(meanInterval)

	return Cadence{
		Confidence:              confidence,
		MeanInterval:            meanInterval,
		Intervals:               len(intervals),
		LastPublicationDate:     &last,
		NextPublicationEstimate: &next,
	}, nil
}

// publicationDates returns distinct filing dates in ascending order. Earnings
// report dates are preferred; quarter ends and then annual statement dates are
// used when a record lacks them.
func publicationDates(record *domain.FinancialRecord) []time.Time {
	var reported, quarterEnds []string
	for _, e := range record.Earnings {
		reported = append(reported, e.ReportedDate)
		quarterEnds = append(quarterEnds, e.FiscalDateEnding)
	}

	if dates := distinctDates(reported); len(dates) >= minCadenceDates {
		return dates
	}
	if dates := distinctDates(quarterEnds); len(dates) >= minCadenceDates {
		return dates
	}

	var annual []string
	for _, s := range record.IncomeStatements {
		annual = append(annual, s.FiscalDateEnding)
	}
	return distinctDates(annual)
}

func distinctDates(values []string) []time.Time {
	seen := make(map[time.Time]bool, len(values))
	dates := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, ok := domain.ParseDate(v)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		dates = append(dates, t)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
