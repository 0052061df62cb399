package earthdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const dataRel = "http://esipfed.org/ns/fedsearch/1.1/data#"

// BoundingBox is a WGS84 search rectangle in degrees.
type BoundingBox struct {
	West, South, East, North float64
}

// BoxAround returns the box of half-width half centered on (lat, lon),
// clipped to valid coordinates.
func BoxAround(lat, lon, half float64) BoundingBox {
	return BoundingBox{
		West:  math.Max(-180, lon-half),
		South: math.Max(-90, lat-half),
		East:  math.Min(180, lon+half),
		North: math.Min(90, lat+half),
	}
}

func (b BoundingBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return strings.Join([]string{f(b.West), f(b.South), f(b.East), f(b.North)}, ",")
}

// SearchParams selects granules of one product.
type SearchParams struct {
	ShortName string
	Version   string
	Start     time.Time
	End       time.Time
	Box       BoundingBox
	// Limit caps the number of granules returned; 0 means 1.
	Limit int
}

// Granule is one searchable file of a product.
type Granule struct {
	ID        string
	Title     string
	TimeStart string
	// DataLinks are the HTTPS download URLs, in catalog order.
	DataLinks []string
}

type cmrFeed struct {
	Feed struct {
		Entry []cmrEntry `json:"entry"`
	} `json:"feed"`
}

type cmrEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	TimeStart string    `json:"time_start"`
	Links     []cmrLink `json:"links"`
}

type cmrLink struct {
	Href      string `json:"href"`
	Rel       string `json:"rel"`
	Inherited bool   `json:"inherited"`
}

// CMRClient queries the Common Metadata Repository granule search.
type CMRClient struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
}

// NewCMRClient creates a search client. A nil limiter means no rate limit.
func NewCMRClient(endpoint string, client *http.Client, limiter *rate.Limiter, logger *zap.SugaredLogger) *CMRClient {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CMRClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		limiter:  limiter,
		logger:   logger,
	}
}

// Search returns the granules matching p. No matches is not an error.
func (c *CMRClient) Search(ctx context.Context, p SearchParams) ([]Granule, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 1
	}

	q := url.Values{}
	q.Set("short_name", p.ShortName)
	if p.Version != "" {
		q.Set("version", p.Version)
	}
	q.Set("temporal", p.Start.UTC().Format(time.RFC3339)+","+p.End.UTC().Format(time.RFC3339))
	q.Set("bounding_box", p.Box.String())
	q.Set("page_size", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/search/granules.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debugw("searching CMR", "short_name", p.ShortName, "version", p.Version, "bbox", p.Box.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error searching CMR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CMR search for %s returned %s", p.ShortName, resp.Status)
	}

	var feed cmrFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("error decoding CMR response: %w", err)
	}

	granules := make([]Granule, 0, len(feed.Feed.Entry))
	for _, e := range feed.Feed.Entry {
		g := Granule{ID: e.ID, Title: e.Title, TimeStart: e.TimeStart}
		for _, l := range e.Links {
			if l.Rel == dataRel && !l.Inherited && strings.HasPrefix(l.Href, "https://") {
				g.DataLinks = append(g.DataLinks, l.Href)
			}
		}
		granules = append(granules, g)
	}
	if len(granules) > limit {
		granules = granules[:limit]
	}
	return granules, nil
}
