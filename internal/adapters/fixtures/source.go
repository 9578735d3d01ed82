// Package fixtures serves the dashboard's static datasets from YAML, either
// the embedded defaults or an operator-supplied file.
package fixtures

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/ports"
)

//go:embed datasets.yaml
var defaultDatasets []byte

var _ ports.DatasetSource = (*Source)(nil)

// Source decodes datasets once and hands out copies of the top-level slices.
type Source struct {
	raw  []byte
	once sync.Once
	data emergency.Datasets
	err  error
}

// NewEmbedded returns a source backed by the built-in datasets.
func NewEmbedded() *Source { return &Source{raw: defaultDatasets} }

// NewFromFile returns a source backed by a YAML file on disk. An empty path
// falls back to the embedded datasets.
func NewFromFile(path string) (*Source, error) {
	if path == "" {
		return NewEmbedded(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read datasets %s: %w", path, err)
	}
	return &Source{raw: b}, nil
}

// NewFromBytes returns a source decoding raw YAML.
func NewFromBytes(raw []byte) *Source { return &Source{raw: raw} }

// Load implements ports.DatasetSource.
func (s *Source) Load(_ context.Context) (emergency.Datasets, error) {
	s.once.Do(func() {
		dec := yaml.NewDecoder(bytes.NewReader(s.raw))
		dec.KnownFields(true)
		if err := dec.Decode(&s.data); err != nil {
			s.err = fmt.Errorf("decode datasets: %w", err)
		}
	})
	if s.err != nil {
		return emergency.Datasets{}, s.err
	}
	return clone(s.data), nil
}

func clone(d emergency.Datasets) emergency.Datasets {
	d.MapEvents = append([]emergency.Event(nil), d.MapEvents...)
	d.RecentEvents = append([]emergency.RecentEvent(nil), d.RecentEvents...)
	d.Displaced = append([]emergency.DisplacedRecord(nil), d.Displaced...)
	d.Fires = append([]emergency.FireIncident(nil), d.Fires...)
	d.Poverty = append([]emergency.PovertyRecord(nil), d.Poverty...)
	d.Food = append([]emergency.FoodDistribution(nil), d.Food...)
	d.PovertyStatus = append([]emergency.PovertyStatus(nil), d.PovertyStatus...)
	return d
}
