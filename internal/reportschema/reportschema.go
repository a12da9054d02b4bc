// Package reportschema versions the wire representation of allocator
// summary/full reports, so a telemetry consumer built against an older
// schema can detect incompatibility instead of misreading new fields.
package reportschema

import (
	"encoding/json"
	"fmt"

	semver "github.com/Masterminds/semver/v3"

	"github.com/offsetpool/meshpool/internal/allocator"
)

// Version is the schema version this build of the package emits.
const Version = "1.0.0"

// SupportedConstraint is the range of schema versions this package can
// decode. Widened only on a deliberate, backward-compatible field addition.
const SupportedConstraint = ">=1.0.0, <2.0.0"

// Envelope wraps a report with the schema version it was produced under.
type Envelope struct {
	Schema string          `json:"schema"`
	Kind   string          `json:"kind"`
	Report json.RawMessage `json:"report"`
}

// EncodeSummary wraps a SummaryReport in a versioned Envelope.
func EncodeSummary(r allocator.SummaryReport) (Envelope, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("reportschema: encode summary: %w", err)
	}

	return Envelope{Schema: Version, Kind: "summary", Report: body}, nil
}

// EncodeFull wraps a FullReport in a versioned Envelope.
func EncodeFull(r allocator.FullReport) (Envelope, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("reportschema: encode full: %w", err)
	}

	return Envelope{Schema: Version, Kind: "full", Report: body}, nil
}

// CheckCompatible reports whether an Envelope's schema version satisfies
// SupportedConstraint, using the same semver-constraint idiom this
// codebase's package resolver uses for dependency version ranges.
func CheckCompatible(e Envelope) error {
	v, err := semver.NewVersion(e.Schema)
	if err != nil {
		return fmt.Errorf("reportschema: invalid schema version %q: %w", e.Schema, err)
	}

	c, err := semver.NewConstraint(SupportedConstraint)
	if err != nil {
		return fmt.Errorf("reportschema: invalid constraint %q: %w", SupportedConstraint, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("reportschema: schema %s does not satisfy %s", e.Schema, SupportedConstraint)
	}

	return nil
}

// DecodeSummary validates the envelope's schema and unmarshals its body as a
// SummaryReport.
func DecodeSummary(e Envelope) (allocator.SummaryReport, error) {
	var r allocator.SummaryReport

	if e.Kind != "summary" {
		return r, fmt.Errorf("reportschema: envelope kind %q is not summary", e.Kind)
	}

	if err := CheckCompatible(e); err != nil {
		return r, err
	}

	if err := json.Unmarshal(e.Report, &r); err != nil {
		return r, fmt.Errorf("reportschema: decode summary: %w", err)
	}

	return r, nil
}

// DecodeFull validates the envelope's schema and unmarshals its body as a
// FullReport.
func DecodeFull(e Envelope) (allocator.FullReport, error) {
	var r allocator.FullReport

	if e.Kind != "full" {
		return r, fmt.Errorf("reportschema: envelope kind %q is not full", e.Kind)
	}

	if err := CheckCompatible(e); err != nil {
		return r, err
	}

	if err := json.Unmarshal(e.Report, &r); err != nil {
		return r, fmt.Errorf("reportschema: decode full: %w", err)
	}

	return r, nil
}
