package weightfile

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"concord/contexts/governance/weighted-voting/domain/entities"
	"concord/contexts/governance/weighted-voting/ports"

	"gopkg.in/yaml.v2"
)

type document struct {
	Weights map[string]float64 `yaml:"weights"`
}

// Source serves a weight table read from a YAML file. Readers always see a
// complete table: Reload swaps the pointer only after the new file parses.
type Source struct {
	path    string
	current atomic.Pointer[entities.WeightTable]
	logger  *slog.Logger
}

// Load reads path once and returns a reloadable source.
func Load(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	source := &Source{path: strings.TrimSpace(path), logger: logger}
	if err := source.Reload(); err != nil {
		return nil, err
	}
	return source, nil
}

func (s *Source) Current() entities.WeightTable {
	table := s.current.Load()
	if table == nil {
		return entities.DefaultWeightTable()
	}
	return *table
}

// Reload re-reads the file. On failure the previous table stays active.
func (s *Source) Reload() error {
	table, err := readFile(s.path)
	if err != nil {
		s.logger.Error("voter weights reload failed",
			"event", "governance_weights_reload_failed",
			"module", "governance/weighted-voting",
			"layer", "adapter",
			"path", s.path,
			"error", err.Error(),
		)
		return err
	}
	s.current.Store(&table)
	s.logger.Info("voter weights loaded",
		"event", "governance_weights_loaded",
		"module", "governance/weighted-voting",
		"layer", "adapter",
		"path", s.path,
		"classes", len(table.Classes()),
	)
	return nil
}

// Parse decodes a weights document.
func Parse(raw []byte) (entities.WeightTable, error) {
	var doc document
	if err := yaml.UnmarshalStrict(raw, &doc); err != nil {
		return entities.WeightTable{}, fmt.Errorf("decode voter weights: %w", err)
	}
	weights := make(map[entities.VoterClass]float64, len(doc.Weights))
	for class, weight := range doc.Weights {
		weights[entities.VoterClass(class)] = weight
	}
	table, err := entities.NewWeightTable(weights)
	if err != nil {
		return entities.WeightTable{}, fmt.Errorf("validate voter weights: %w", err)
	}
	return table, nil
}

func readFile(path string) (entities.WeightTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return entities.WeightTable{}, fmt.Errorf("read voter weights: %w", err)
	}
	return Parse(raw)
}

// StaticSource always returns the same table.
type StaticSource struct {
	table entities.WeightTable
}

func Static(table entities.WeightTable) StaticSource {
	return StaticSource{table: table}
}

func (s StaticSource) Current() entities.WeightTable {
	return s.table
}

var _ ports.WeightSource = (*Source)(nil)
var _ ports.WeightSource = StaticSource{}
