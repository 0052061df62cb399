package earthdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chrissnell/tempoaqi/internal/grid"
)

// ErrNoDataLink is returned for granules without an HTTPS download link.
var ErrNoDataLink = errors.New("granule has no data link")

// DatasetHandle is an open granule. Close releases the local copy.
type DatasetHandle interface {
	grid.Dataset
	io.Closer
}

// Repository combines authentication, search and download.
type Repository struct {
	auth        *Authenticator
	cmr         *CMRClient
	client      *http.Client
	limiter     *rate.Limiter
	downloadDir string
	logger      *zap.SugaredLogger
}

// NewRepository creates a repository. An empty downloadDir uses the
// system temp directory.
func NewRepository(auth *Authenticator, cmr *CMRClient, client *http.Client, limiter *rate.Limiter, downloadDir string, logger *zap.SugaredLogger) *Repository {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Repository{
		auth:        auth,
		cmr:         cmr,
		client:      client,
		limiter:     limiter,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// Authenticate makes sure a session token is available.
func (r *Repository) Authenticate(ctx context.Context) error {
	_, err := r.auth.Token(ctx)
	return err
}

// Search finds granules of one product.
func (r *Repository) Search(ctx context.Context, p SearchParams) ([]Granule, error) {
	return r.cmr.Search(ctx, p)
}

// Open downloads the granule's first data link and opens it.
func (r *Repository) Open(ctx context.Context, g Granule) (DatasetHandle, error) {
	if len(g.DataLinks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataLink, g.Title)
	}
	link := g.DataLinks[0]

	f, err := os.CreateTemp(r.downloadDir, "granule-*-"+path.Base(link))
	if err != nil {
		return nil, fmt.Errorf("error creating download file: %w", err)
	}
	h := &fileHandle{path: f.Name()}

	err = r.download(ctx, link, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		h.Close()
		return nil, err
	}

	ds, err := grid.Open(h.path)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("error opening %s: %w", g.Title, err)
	}
	h.FileDataset = ds

	r.logger.Debugw("opened granule", "granule", g.Title, "file", h.path)
	return h, nil
}

// download fetches link into f. A refused token is discarded and the
// download retried once with a fresh one.
func (r *Repository) download(ctx context.Context, link string, f *os.File) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := r.auth.Token(ctx)
		if err != nil {
			return err
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		status, err := r.fetch(ctx, link, token, f)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusUnauthorized:
			r.logger.Warnw("data server refused token, re-authenticating", "link", link)
			r.auth.Invalidate()
			continue
		default:
			return fmt.Errorf("download of %s returned status %d", link, status)
		}
	}
	return fmt.Errorf("download of %s unauthorized after re-authentication", link)
}

func (r *Repository) fetch(ctx context.Context, link, token string, f *os.File) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error downloading %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return resp.StatusCode, nil
	}

	if err := f.Truncate(0); err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		return 0, fmt.Errorf("error downloading %s: %w", link, err)
	}
	return http.StatusOK, nil
}

// fileHandle owns a downloaded granule and removes it on Close.
type fileHandle struct {
	grid.FileDataset
	path string
}

func (h *fileHandle) Close() error {
	var err error
	if h.FileDataset != nil {
		err = h.FileDataset.Close()
	}
	if rmErr := os.Remove(h.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
