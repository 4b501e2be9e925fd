// Package ingest decodes batch files and applies them to clustering sessions.
package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/capcluster/internal/models"
)

// Op is the session operation a batch performs.
type Op string

const (
	OpInitialize Op = "initialize"
	OpAdd        Op = "add"
)

// Batch is the content of one batch file, in YAML or JSON.
type Batch struct {
	Family     string             `yaml:"family" json:"family"`
	Op         Op                 `yaml:"op" json:"op"`
	K          int                `yaml:"k,omitempty" json:"k,omitempty"`
	Capacities []int              `yaml:"capacities,omitempty" json:"capacities,omitempty"`
	Reset      bool               `yaml:"reset,omitempty" json:"reset,omitempty"`
	Refit      bool               `yaml:"refit,omitempty" json:"refit,omitempty"`
	Labels     map[string]string  `yaml:"labels,omitempty" json:"labels,omitempty"`
	Items      []models.ItemInput `yaml:"items" json:"items"`
}

// DecodeBatch parses a batch. JSON input is accepted as YAML. When op is omitted
// it is inferred: a batch with k or capacities initializes, anything else adds.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	b.Family = strings.TrimSpace(b.Family)
	if b.Op == "" {
		if b.K > 0 || len(b.Capacities) > 0 {
			b.Op = OpInitialize
		} else {
			b.Op = OpAdd
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadFile reads and decodes the batch at path.
func LoadFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", path, err)
	}
	return DecodeBatch(data)
}

// Validate checks the fields a batch needs before it reaches a session.
// Item contents are validated by the session itself.
func (b *Batch) Validate() error {
	switch b.Op {
	case OpInitialize, OpAdd:
	default:
		return fmt.Errorf("invalid batch op %q (want initialize or add)", b.Op)
	}
	if len(b.Items) == 0 {
		return fmt.Errorf("batch has no items")
	}
	return nil
}

// InitializeRequest converts the batch into a cold-start request.
func (b *Batch) InitializeRequest() models.InitializeRequest {
	return models.InitializeRequest{
		Items:      b.Items,
		K:          b.K,
		Capacities: b.Capacities,
		Labels:     b.Labels,
		Reset:      b.Reset,
	}
}

// AddItemsRequest converts the batch into an insertion request.
func (b *Batch) AddItemsRequest() models.AddItemsRequest {
	return models.AddItemsRequest{Items: b.Items, Labels: b.Labels, Refit: b.Refit}
}
