package source

import (
	"context"
	"fmt"

	"github.com/evaafi/oracle-watchdog/watchdog/config"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
	"github.com/evaafi/oracle-watchdog/watchdog/verifier"
)

// Source is one independent feed of signed price readings.
type Source interface {
	Name() string
	Role() types.Role
	Scheme() verifier.Scheme
	// GetPrices returns the lead reading first.
	GetPrices(ctx context.Context) ([]types.RawPriceReading, error)
}

// Layout describes where a source publishes readings and how to read them.
type Layout struct {
	Path      string // may contain {oracle}
	List      string // gjson path of the reading array, empty for a root array
	Timestamp string
	Payload   string
	Signature string
}

var layouts = map[string]Layout{
	"icp": {
		Path:      "/prices?oracle={oracle}",
		List:      "prices",
		Timestamp: "timestamp",
		Payload:   "payload",
		Signature: "signature",
	},
	"backend": {
		Path:      "/api/prices?oracle={oracle}",
		List:      "",
		Timestamp: "timestamp",
		Payload:   "data",
		Signature: "signature",
	},
	"iota": {
		Path:      "/api/oracle/{oracle}/prices",
		List:      "data.prices",
		Timestamp: "timestamp",
		Payload:   "payload",
		Signature: "signature",
	},
}

func LayoutFor(kind string) (Layout, bool) {
	l, ok := layouts[kind]
	return l, ok
}

// FromConfig builds the configured HTTP sources for one oracle.
func FromConfig(cfg *config.Config, oracle string) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		layout, ok := LayoutFor(sc.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
		}

		sources = append(sources, NewHTTPSource(HTTPSourceConfig{
			Name:     sc.Name,
			Role:     sc.Role,
			Scheme:   sc.Scheme,
			Endpoint: sc.Endpoint,
			Oracle:   oracle,
			Layout:   layout,
			Timeout:  cfg.HTTPTimeout,
		}))
	}

	return sources, nil
}
