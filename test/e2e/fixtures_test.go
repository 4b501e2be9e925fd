package e2e

import (
	"testing"

	"github.com/hyperjump/capcluster/internal/ingest"
)

func TestEncodeBatchRoundTrips(t *testing.T) {
	c := BuildCorpus(2, 2, 2, 1)
	b := &ingest.Batch{Family: "hu", Op: ingest.OpInitialize, K: 2, Items: c.Items}
	for _, ext := range SupportedBatchExtensions {
		t.Run(ext, func(t *testing.T) {
			data, err := EncodeBatch(ext, b)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ingest.DecodeBatch(data)
			if err != nil {
				t.Fatalf("DecodeBatch: %v\n%s", err, data)
			}
			if got.Family != "hu" || got.Op != ingest.OpInitialize || len(got.Items) != 4 || got.Items[3].Label != c.Items[3].Label {
				t.Errorf("decoded: %+v", got)
			}
		})
	}
	if _, err := EncodeBatch(".txt", b); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
