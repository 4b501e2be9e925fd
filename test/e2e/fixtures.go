package e2e

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/capcluster/internal/ingest"
)

// SupportedBatchExtensions are the batch file formats the inbox accepts.
var SupportedBatchExtensions = []string{".json", ".yaml", ".yml"}

// EncodeBatch renders b in the format implied by ext.
func EncodeBatch(ext string, b *ingest.Batch) ([]byte, error) {
	switch ext {
	case ".json":
		return json.MarshalIndent(b, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(b)
	default:
		return nil, fmt.Errorf("unsupported batch extension %q", ext)
	}
}
