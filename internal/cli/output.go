// Package cli provides output helpers for the capcluster command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// metricPlaces is the precision metric values are reported with.
const metricPlaces = 4

// maxIDWidth bounds item IDs in text tables.
const maxIDWidth = 40

// RoundMetrics returns a copy of m with every score rounded for display.
func RoundMetrics(m *models.MetricsSnapshot) *models.MetricsSnapshot {
	if m == nil {
		return nil
	}
	out := &models.MetricsSnapshot{
		DunnIndex:   utils.RoundPtr(m.DunnIndex, metricPlaces),
		Silhouette:  utils.RoundPtr(m.Silhouette, metricPlaces),
		Unavailable: m.Unavailable,
	}
	if m.External != nil {
		out.External = &models.ExternalMetrics{
			NMI: utils.Round(m.External.NMI, metricPlaces),
			ARI: utils.Round(m.External.ARI, metricPlaces),
			AMI: utils.Round(m.External.AMI, metricPlaces),
		}
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStatus writes a session status to w in the given format.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	rounded := *st
	rounded.Metrics = RoundMetrics(st.Metrics)
	if format == OutputJSON {
		return writeJSON(w, &rounded)
	}

	if !st.Active {
		fmt.Fprintf(w, "Session %s: inactive\n", st.Family)
		return nil
	}
	fmt.Fprintf(w, "Session %s: active\n", st.Family)
	fmt.Fprintf(w, "  clusters:   %d\n", st.NumClusters)
	fmt.Fprintf(w, "  dimension:  %d\n", st.Dimension)
	if st.Distance != "" {
		fmt.Fprintf(w, "  distance:   %s\n", st.Distance)
	}
	fmt.Fprintf(w, "  items:      %d\n", st.TotalItems)
	fmt.Fprintf(w, "  capacities: %s\n", utils.FormatCapacities(st.Capacities))
	fmt.Fprintf(w, "  counts:     %s\n", utils.FormatCapacities(st.CurrentCounts))
	fmt.Fprintf(w, "  available:  %s\n", utils.FormatCapacities(st.AvailableSpaces))
	writeMetricsText(w, rounded.Metrics)
	return nil
}

func writeMetricsText(w io.Writer, m *models.MetricsSnapshot) {
	if m == nil {
		return
	}
	fmt.Fprintln(w, "Metrics:")
	if m.DunnIndex != nil {
		fmt.Fprintf(w, "  dunn index:  %.4f\n", *m.DunnIndex)
	}
	if m.Silhouette != nil {
		fmt.Fprintf(w, "  silhouette:  %.4f\n", *m.Silhouette)
	}
	if m.External != nil {
		fmt.Fprintf(w, "  nmi:         %.4f\n", m.External.NMI)
		fmt.Fprintf(w, "  ari:         %.4f\n", m.External.ARI)
		fmt.Fprintf(w, "  ami:         %.4f\n", m.External.AMI)
	}
	names := make([]string, 0, len(m.Unavailable))
	for name := range m.Unavailable {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s unavailable: %s\n", name, m.Unavailable[name])
	}
}

// Assignments is the printable result of an initialize or add-items call.
type Assignments struct {
	Family      string                    `json:"family"`
	Assignments []models.AssignmentResult `json:"assignments"`
	Iterations  int                       `json:"iterations,omitempty"`
	Moved       int                       `json:"moved,omitempty"`
	Metrics     *models.MetricsSnapshot   `json:"metrics,omitempty"`
}

// FromInitialize adapts an InitializeResponse for printing.
func FromInitialize(r *models.InitializeResponse) *Assignments {
	return &Assignments{Family: r.Family, Assignments: r.Assignments, Iterations: r.Iterations, Metrics: r.Metrics}
}

// FromAddItems adapts an AddItemsResponse for printing.
func FromAddItems(r *models.AddItemsResponse) *Assignments {
	return &Assignments{Family: r.Family, Assignments: r.Assignments, Moved: r.Moved, Metrics: r.Metrics}
}

// WriteAssignments writes item placements to w in the given format. Centroids are
// rounded for display.
func WriteAssignments(w io.Writer, a *Assignments, format OutputFormat) error {
	out := *a
	out.Metrics = RoundMetrics(a.Metrics)
	out.Assignments = make([]models.AssignmentResult, len(a.Assignments))
	for i, r := range a.Assignments {
		c := make([]float64, len(r.Centroid))
		for j, v := range r.Centroid {
			c[j] = utils.Round(v, metricPlaces)
		}
		out.Assignments[i] = models.AssignmentResult{ItemID: r.ItemID, Cluster: r.Cluster, Centroid: c}
	}
	if format == OutputJSON {
		return writeJSON(w, &out)
	}

	fmt.Fprintf(w, "Assigned %d items in session %s", len(out.Assignments), out.Family)
	if out.Iterations > 0 {
		fmt.Fprintf(w, " (%d iterations)", out.Iterations)
	}
	if out.Moved > 0 {
		fmt.Fprintf(w, " (%d moved by refit)", out.Moved)
	}
	fmt.Fprintln(w)
	for _, r := range out.Assignments {
		fmt.Fprintf(w, "  %-*s -> cluster %d\n", maxIDWidth, utils.Truncate(r.ItemID, maxIDWidth), r.Cluster)
	}
	writeMetricsText(w, out.Metrics)
	return nil
}

// WriteSessions writes a session listing to w in the given format.
func WriteSessions(w io.Writer, sessions []session.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"sessions": sessions})
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions")
		return nil
	}
	for _, s := range sessions {
		if !s.Active {
			fmt.Fprintf(w, "%-12s inactive\n", s.Family)
			continue
		}
		fmt.Fprintf(w, "%-12s active  k=%d items=%d\n", s.Family, s.K, s.TotalItems)
	}
	return nil
}

// WriteCapacities writes the capacity table after an update to w in the given format.
func WriteCapacities(w io.Writer, r *models.UpdateCapacitiesResponse, format OutputFormat) error {
	out := *r
	out.Metrics = RoundMetrics(r.Metrics)
	if format == OutputJSON {
		return writeJSON(w, &out)
	}
	fmt.Fprintf(w, "Capacities for session %s updated\n", out.Family)
	fmt.Fprintf(w, "  capacities: %s\n", utils.FormatCapacities(out.Capacities))
	fmt.Fprintf(w, "  counts:     %s\n", utils.FormatCapacities(out.CurrentCounts))
	fmt.Fprintf(w, "  available:  %s\n", utils.FormatCapacities(out.AvailableSpaces))
	writeMetricsText(w, out.Metrics)
	return nil
}

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}
