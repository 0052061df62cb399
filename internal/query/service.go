// Package query orchestrates per-point lookups of every configured product
// and fuses the readings into composite indices.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/tempoaqi/internal/earthdata"
	"github.com/chrissnell/tempoaqi/internal/grid"
	"github.com/chrissnell/tempoaqi/internal/metrics"
	"github.com/chrissnell/tempoaqi/internal/types"
	"github.com/chrissnell/tempoaqi/pkg/aqi"
)

// ErrInvalidCoordinates is returned for a missing or out-of-range center.
var ErrInvalidCoordinates = errors.New("coordinates required")

// Source finds and opens granules. *earthdata.Repository implements it.
type Source interface {
	Authenticate(ctx context.Context) error
	Search(ctx context.Context, p earthdata.SearchParams) ([]earthdata.Granule, error)
	Open(ctx context.Context, g earthdata.Granule) (earthdata.DatasetHandle, error)
}

// Product is one gridded product consulted for every point.
type Product struct {
	Pollutant types.Pollutant
	ShortName string
	Version   string
	// Scale converts extracted columns to molecules/cm².
	Scale     float64
	Extractor *grid.Extractor
}

// WindowFunc returns the temporal search window for a request started at now.
type WindowFunc func(now time.Time) (start, end time.Time, err error)

// Options tunes a Service.
type Options struct {
	Window        WindowFunc
	BoxHalfSize   float64
	Concurrency   int
	DefaultPoints int
	DefaultRadius float64
	MaxPoints     int
	// Rand seeds point generation; nil uses the global source.
	Rand rand.Source
}

// Request asks for composite indices around a center.
type Request struct {
	Center types.SamplePoint
	// Points and RadiusMeters fall back to the configured defaults when zero.
	Points       int
	RadiusMeters float64
}

// Response summarizes a query.
type Response struct {
	Center         types.SamplePoint
	RadiusMeters   float64
	TotalPoints    int
	PointsWithData int
	Results        []types.QueryResult
}

// Service answers queries. It is safe for concurrent use; every query works
// on its own state.
type Service struct {
	source   Source
	products []Product
	calc     *aqi.Calculator
	opts     Options
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

// NewService creates a query service.
func NewService(source Source, products []Product, calc *aqi.Calculator, opts Options, m *metrics.Metrics, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DefaultPoints < 1 {
		opts.DefaultPoints = 1
	}
	products = append([]Product(nil), products...)
	for i := range products {
		if products[i].Scale == 0 {
			products[i].Scale = 1
		}
		if products[i].Extractor == nil {
			products[i].Extractor = grid.NewExtractor(grid.DefaultVariableNames(), logger)
		}
	}
	return &Service{
		source:   source,
		products: products,
		calc:     calc,
		opts:     opts,
		metrics:  m,
		logger:   logger,
	}
}

// ValidCenter reports whether p is a usable WGS84 coordinate.
func ValidCenter(p types.SamplePoint) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Query computes the composite index for every sample point of req.
// Per-product failures only leave that pollutant out of a point; an
// authentication failure fails the whole query.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := s.query(ctx, req)
	switch {
	case err == nil:
		s.metrics.ObserveQuery(metrics.StatusOK, time.Since(start))
	case errors.Is(err, ErrInvalidCoordinates):
		s.metrics.ObserveQuery(metrics.StatusBadInput, time.Since(start))
	case errors.Is(err, earthdata.ErrAuthenticationFailed):
		s.metrics.ObserveQuery(metrics.StatusAuthError, time.Since(start))
	default:
		s.metrics.ObserveQuery(metrics.StatusError, time.Since(start))
	}
	return resp, err
}

func (s *Service) query(ctx context.Context, req Request) (*Response, error) {
	if !ValidCenter(req.Center) {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, req.Center.Lat, req.Center.Lon)
	}

	n := req.Points
	if n <= 0 {
		n = s.opts.DefaultPoints
	}
	if s.opts.MaxPoints > 0 && n > s.opts.MaxPoints {
		s.logger.Warnw("capping requested points", "requested", n, "max", s.opts.MaxPoints)
		n = s.opts.MaxPoints
	}
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = s.opts.DefaultRadius
	}

	if err := s.source.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("error authenticating: %w", err)
	}

	from, to, err := s.window(time.Now())
	if err != nil {
		return nil, err
	}

	points := SamplePoints(req.Center, radius, n, s.opts.Rand)
	s.logger.Infow("query started", "lat", req.Center.Lat, "lon", req.Center.Lon, "radius_m", radius, "points", len(points))

	results := make([]types.QueryResult, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range points {
		g.Go(func() error {
			r, err := s.queryPoint(gctx, p, from, to)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	withData := 0
	for _, r := range results {
		if r.HasData {
			withData++
		}
	}
	s.logger.Infow("query finished", "points", len(points), "points_with_data", withData)

	return &Response{
		Center:         req.Center,
		RadiusMeters:   radius,
		TotalPoints:    len(points),
		PointsWithData: withData,
		Results:        results,
	}, nil
}

func (s *Service) window(now time.Time) (time.Time, time.Time, error) {
	if s.opts.Window == nil {
		return now.Add(-24 * time.Hour), now, nil
	}
	return s.opts.Window(now)
}

// queryPoint consults every product for p, one after another.
func (s *Service) queryPoint(ctx context.Context, p types.SamplePoint, from, to time.Time) (types.QueryResult, error) {
	set := types.PollutantSet{}
	for _, prod := range s.products {
		r, err := s.lookup(ctx, prod, p, from, to)
		if err != nil {
			if errors.Is(err, earthdata.ErrAuthenticationFailed) || ctx.Err() != nil {
				return types.QueryResult{}, err
			}
			s.logger.Warnw("product lookup failed", "product", prod.ShortName, "lat", p.Lat, "lon", p.Lon, "error", err)
			continue
		}
		if r != nil {
			set[prod.Pollutant] = *r
		}
	}

	idx := s.calc.Compute(set)
	s.metrics.ObserveIndex(idx.Value, idx.Reason)
	if !idx.HasValue() {
		s.logger.Debugw("no composite index", "lat", p.Lat, "lon", p.Lon, "reason", idx.Reason)
	}
	return types.NewQueryResult(p, set, idx), nil
}

// lookup returns the reading of one product at p, or nil when the product
// has no granule there.
func (s *Service) lookup(ctx context.Context, prod Product, p types.SamplePoint, from, to time.Time) (*types.Reading, error) {
	pollutant := string(prod.Pollutant)

	granules, err := s.source.Search(ctx, earthdata.SearchParams{
		ShortName: prod.ShortName,
		Version:   prod.Version,
		Start:     from,
		End:       to,
		Box:       earthdata.BoxAround(p.Lat, p.Lon, s.opts.BoxHalfSize),
		Limit:     1,
	})
	if err != nil {
		s.metrics.ObserveLookup(pollutant, metrics.OutcomeSearchError)
		return nil, fmt.Errorf("error searching %s: %w", prod.ShortName, err)
	}
	if len(granules) == 0 {
		s.metrics.ObserveLookup(pollutant, metrics.OutcomeNoGranules)
		s.logger.Debugw("no granules", "product", prod.ShortName, "lat", p.Lat, "lon", p.Lon)
		return nil, nil
	}

	ds, err := s.source.Open(ctx, granules[0])
	if err != nil {
		s.metrics.ObserveLookup(pollutant, metrics.OutcomeOpenError)
		return nil, fmt.Errorf("error opening %s: %w", granules[0].Title, err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			s.logger.Warnw("error closing granule", "granule", granules[0].Title, "error", err)
		}
	}()

	r, err := prod.Extractor.Extract(ds, p.Lat, p.Lon)
	if err != nil {
		s.metrics.ObserveLookup(pollutant, metrics.OutcomeExtractError)
		return nil, fmt.Errorf("error extracting %s: %w", prod.ShortName, err)
	}
	s.metrics.ObserveLookup(pollutant, metrics.OutcomeOK)

	if prod.Scale != 1 {
		r = r.Scaled(prod.Scale)
	}
	return &r, nil
}
