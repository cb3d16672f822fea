package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Category classifies a fetch failure.
type Category int

const (
	// CategoryConfig is a configuration problem that retrying cannot fix.
	CategoryConfig Category = iota
	// CategoryIO is a local file that could not be read.
	CategoryIO
	// CategoryNetwork is a request that failed or returned a non-2xx status.
	CategoryNetwork
	// CategoryParse is a payload that could not be turned into rows.
	CategoryParse
)

// String returns a short label for the category.
func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "config"
	case CategoryIO:
		return "io"
	case CategoryNetwork:
		return "network"
	case CategoryParse:
		return "parse"
	default:
		return "unknown"
	}
}

// FetchError is returned by Fetch for every failure.
type FetchError struct {
	Category Category
	Target   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Category, e.Target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure may go away on retry.
func (e *FetchError) Transient() bool {
	return e.Category != CategoryConfig
}

// CategoryOf returns the category of err. Errors that are not a FetchError
// are treated as network failures.
func CategoryOf(err error) Category {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return CategoryNetwork
}

// IsPermanent reports whether err is a configuration failure.
func IsPermanent(err error) bool {
	return err != nil && CategoryOf(err) == CategoryConfig
}

// Fetcher obtains the rows for a descriptor.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) ([][]string, error)
}

// Ensure Loader implements Fetcher at compile time.
var _ Fetcher = (*Loader)(nil)

const defaultUserAgent = "griddash/dev"

// Loader fetches static, file and remote sources.
type Loader struct {
	http      *http.Client
	userAgent string
	readFile  func(string) ([]byte, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient replaces the HTTP client. Redirect handling of the given
// client is left untouched.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.http = c
	}
}

// WithUserAgent sets the User-Agent header sent with remote requests.
func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// NewLoader builds a Loader. The default HTTP client has no timeout and does
// not follow redirects.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		http: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: defaultUserAgent,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch returns the rows for d.
func (l *Loader) Fetch(ctx context.Context, d Descriptor) ([][]string, error) {
	switch v := d.(type) {
	case Static:
		return CloneRows(v.Rows), nil
	case File:
		return l.fetchFile(v)
	case Remote:
		return l.fetchRemote(ctx, v)
	case nil:
		return nil, &FetchError{Category: CategoryConfig, Err: errors.New("no source configured")}
	default:
		return nil, &FetchError{Category: CategoryConfig, Err: fmt.Errorf("unsupported source %T", d)}
	}
}

func (l *Loader) fetchFile(f File) ([][]string, error) {
	if f.Mapping == nil {
		return nil, &FetchError{Category: CategoryConfig, Target: f.Path, Err: ErrNoMapping}
	}
	raw, err := l.readFile(f.Path)
	if err != nil {
		return nil, &FetchError{Category: CategoryIO, Target: f.Path, Err: err}
	}
	rows, err := Extract(raw, f.Mapping)
	if err != nil {
		return nil, &FetchError{Category: CategoryParse, Target: f.Path, Err: err}
	}
	return rows, nil
}

func (l *Loader) fetchRemote(ctx context.Context, r Remote) ([][]string, error) {
	if r.Mapping == nil {
		return nil, &FetchError{Category: CategoryConfig, Target: r.URL, Err: ErrNoMapping}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, &FetchError{Category: CategoryNetwork, Target: r.URL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, &FetchError{Category: CategoryNetwork, Target: r.URL, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Category: CategoryNetwork, Target: r.URL, Err: fmt.Errorf("returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Category: CategoryNetwork, Target: r.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	rows, err := Extract(body, r.Mapping)
	if err != nil {
		return nil, &FetchError{Category: CategoryParse, Target: r.URL, Err: err}
	}
	return rows, nil
}
