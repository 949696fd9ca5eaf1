package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/evaafi/oracle-watchdog/watchdog/registry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
	"github.com/evaafi/oracle-watchdog/watchdog/verifier"
)

const maxBodySize = 10 << 20

type HTTPSourceConfig struct {
	Name     string
	Role     types.Role
	Scheme   verifier.Scheme
	Endpoint string
	Oracle   string
	Layout   Layout
	Timeout  time.Duration
}

// HTTPSource reads signed prices from a JSON HTTP endpoint.
type HTTPSource struct {
	cfg    HTTPSourceConfig
	url    string
	client *http.Client
}

func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	transport := new(http.Transport)
	transport.Proxy = http.ProxyFromEnvironment
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	client := new(http.Client)
	client.Timeout = cfg.Timeout
	client.Transport = transport

	path := strings.ReplaceAll(cfg.Layout.Path, "{oracle}", url.QueryEscape(cfg.Oracle))

	return &HTTPSource{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.Endpoint, "/") + path,
		client: client,
	}
}

func (s *HTTPSource) Name() string            { return s.cfg.Name }
func (s *HTTPSource) Role() types.Role        { return s.cfg.Role }
func (s *HTTPSource) Scheme() verifier.Scheme { return s.cfg.Scheme }
func (s *HTTPSource) URL() string             { return s.url }

func (s *HTTPSource) GetPrices(ctx context.Context) ([]types.RawPriceReading, error) {
	body, err := s.fetchRawData(ctx)
	if err != nil {
		return nil, err
	}

	return s.parse(body)
}

func (s *HTTPSource) fetchRawData(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("User-Agent", "Oracle-Watchdog/1.0")
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s prices", s.cfg.Name)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("HTTP %d: %s", res.StatusCode, res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return body, nil
}

func (s *HTTPSource) parse(body []byte) ([]types.RawPriceReading, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON response")
	}

	list := gjson.ParseBytes(body)
	if s.cfg.Layout.List != "" {
		list = list.Get(s.cfg.Layout.List)
	}
	if !list.IsArray() {
		return nil, errors.Errorf("no reading list at %q", s.cfg.Layout.List)
	}

	entries := list.Array()
	if len(entries) == 0 {
		return nil, errors.New("source returned no prices")
	}

	// only the lead reading is judged, trailing entries are not decoded
	reading, err := s.parseEntry(entries[0])
	if err != nil {
		return nil, errors.Wrap(err, "lead reading")
	}

	return []types.RawPriceReading{reading}, nil
}

func (s *HTTPSource) parseEntry(entry gjson.Result) (types.RawPriceReading, error) {
	ts := entry.Get(s.cfg.Layout.Timestamp)
	if ts.Type != gjson.Number {
		return types.RawPriceReading{}, errors.Errorf("missing numeric %q", s.cfg.Layout.Timestamp)
	}

	payload, err := hexField(entry, s.cfg.Layout.Payload)
	if err != nil {
		return types.RawPriceReading{}, err
	}

	sig, err := hexField(entry, s.cfg.Layout.Signature)
	if err != nil {
		return types.RawPriceReading{}, err
	}

	return types.RawPriceReading{
		Source:    s.cfg.Name,
		Timestamp: ts.Int(),
		Payload:   payload,
		Signature: sig,
	}, nil
}

func hexField(entry gjson.Result, path string) ([]byte, error) {
	field := entry.Get(path)
	if field.Type != gjson.String || field.Str == "" {
		return nil, errors.Errorf("missing %q", path)
	}

	b, err := registry.DecodeHex(field.Str)
	if err != nil {
		return nil, errors.Wrapf(err, "field %q", path)
	}

	return b, nil
}
