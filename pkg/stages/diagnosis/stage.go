// Package diagnosis implements the diagnosis stage: maps an anomaly
// case onto a failing component and a failure-probability/RUL/severity
// triad, deterministically from the anomaly's severity_score, then asks
// the model to narrate the reasoning (spec.md §4.5).
package diagnosis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/pkg/warehouse"
)

// Component maps an anomaly_type (and, for dtc_fault, the DTC prefix)
// to the failing subsystem, mirroring original_source's fixed table
// exactly.
func Component(anomalyType string, dtcCodes []string) string {
	switch anomalyType {
	case "thermal_overheat":
		return "engine_coolant_system"
	case "oil_overheat":
		return "engine_oil_system"
	case "battery_degradation", "low_charge":
		return "battery"
	case "rpm_spike", "rpm_stall":
		return "engine"
	case "dtc_fault":
		return componentFromDTC(dtcCodes)
	case "speed_anomaly":
		return "transmission"
	case "gps_anomaly":
		return "gps_system"
	default:
		return "unknown"
	}
}

// componentFromDTC analyzes the leading letter+digit of a DTC code:
// P0xxx => engine, P1xxx => transmission (spec.md §4.5).
func componentFromDTC(codes []string) string {
	for _, code := range codes {
		c := strings.ToUpper(strings.TrimSpace(code))
		if !strings.HasPrefix(c, "P") || len(c) < 2 {
			continue
		}
		switch c[1] {
		case '0':
			return "engine"
		case '1':
			return "transmission"
		}
	}
	return "engine"
}

// FailureProbability maps severity_score linearly into the corresponding
// risk band (original_source's banded ranges, deterministically
// resolved instead of left to the model).
func FailureProbability(severityScore float64) float64 {
	switch {
	case severityScore <= 0:
		return 0.0
	case severityScore < 0.4:
		return lerp(severityScore, 0.1, 0.3, 0.2, 0.4)
	case severityScore < 0.7:
		return lerp(severityScore, 0.4, 0.6, 0.5, 0.7)
	case severityScore < 0.9:
		return lerp(severityScore, 0.7, 0.8, 0.75, 0.85)
	default:
		return lerp(severityScore, 0.9, 1.0, 0.9, 1.0)
	}
}

// lerp linearly maps x from [x0,x1] into [y0,y1], clamping x to the
// domain first.
func lerp(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	x = math.Max(x0, math.Min(x1, x))
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// EstimatedRULDays derives remaining-useful-life days from the failure
// probability band, floored at 1 (original_source's bands).
func EstimatedRULDays(failureProbability float64) int {
	switch {
	case failureProbability > 0.8:
		return rulWithinBand(failureProbability, 0.8, 1.0, 7, 1)
	case failureProbability >= 0.7:
		return rulWithinBand(failureProbability, 0.7, 0.8, 30, 7)
	case failureProbability >= 0.4:
		return rulWithinBand(failureProbability, 0.4, 0.6, 90, 30)
	default:
		return rulWithinBand(failureProbability, 0.0, 0.4, 180, 90)
	}
}

// rulWithinBand inverts probability-within-band into a day count: higher
// probability within the band means fewer remaining days.
func rulWithinBand(p, lo, hi, daysAtLo, daysAtHi float64) int {
	days := lerp(p, lo, hi, daysAtLo, daysAtHi)
	if days < 1 {
		days = 1
	}
	return int(math.Round(days))
}

// Severity buckets failure_probability into the shared Low/Medium/High
// scale (spec.md §3 invariant).
func Severity(failureProbability float64) string {
	switch {
	case failureProbability < 0.3:
		return "Low"
	case failureProbability < 0.7:
		return "Medium"
	default:
		return "High"
	}
}

// modelInput is the fetched anomaly case plus its telemetry context,
// ready for prompt assembly.
type modelInput struct {
	DiagnosisID     string
	CaseID          string
	VehicleID       string
	AnomalyDetected bool
	AnomalyType     string
	SeverityScore   float64
	DTCCodes        []string
	ContextEventIDs []string
}

type modelOutput struct {
	Reasoning string `json:"reasoning"`
}

// Descriptor builds the diagnosis stage worker.
func Descriptor(wh *warehouse.Sink) stageworker.Descriptor[modelInput, modelOutput] {
	return stageworker.Descriptor[modelInput, modelOutput]{
		Name:               models.AgentStageDiagnosis,
		OutputTopic:        models.TopicDiagnosisComplete,
		DuplicateTable:     store.TableDiagnosisCases,
		DuplicateKeyColumn: "case_id",

		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			caseID := env.String("case_id")
			if caseID == "" {
				return "", stageworker.ErrMalformedInput
			}
			return caseID, nil
		},
		IsAdvanced: store.DiagnosisAdvancedBeyondRCA,

		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (modelInput, error) {
			caseID := env.String("case_id")
			if caseID == "" {
				return modelInput{}, fmt.Errorf("%w: missing case_id", stageworker.ErrMalformedInput)
			}

			anomaly, err := st.GetAnomalyCase(ctx, caseID)
			if err != nil {
				return modelInput{}, stageworker.ErrSkipped
			}
			if store.AnomalyAdvancedBeyondDiagnosis(anomaly.Status) {
				return modelInput{}, stageworker.ErrSkipped
			}

			in := modelInput{
				DiagnosisID:     store.NewID("diagnosis"),
				CaseID:          caseID,
				VehicleID:       anomaly.VehicleID,
				AnomalyDetected: anomaly.AnomalyDetected,
				DTCCodes:        anomaly.DTCCodes,
				ContextEventIDs: anomaly.TelemetryEventIDs,
			}
			if anomaly.AnomalyType != nil {
				in.AnomalyType = *anomaly.AnomalyType
			}
			if anomaly.SeverityScore != nil {
				in.SeverityScore = *anomaly.SeverityScore
			}
			return in, nil
		},

		AssemblePrompt: func(in modelInput) (string, error) {
			return fmt.Sprintf(
				"Diagnose the failing component for vehicle %s.\n"+
					"anomaly_type=%s severity_score=%.2f component=%s failure_probability=%.2f estimated_rul_days=%d severity=%s\n"+
					"Return JSON: {\"reasoning\": \"<one sentence explaining the diagnosis>\"}",
				in.VehicleID, in.AnomalyType, in.SeverityScore,
				Component(in.AnomalyType, in.DTCCodes), FailureProbability(in.SeverityScore),
				EstimatedRULDays(FailureProbability(in.SeverityScore)), Severity(FailureProbability(in.SeverityScore)),
			), nil
		},

		ParseAndNormalize: func(raw string, in modelInput) (modelOutput, error) {
			var out modelOutput
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return modelOutput{}, fmt.Errorf("parse model output: %w", err)
			}
			return out, nil
		},

		Commit: func(ctx context.Context, st *store.Store, in modelInput, out modelOutput) (map[string]any, bool, error) {
			var failureProbability float64
			var rulDays int
			var severity string
			var component string

			if !in.AnomalyDetected {
				failureProbability, rulDays, severity = 0.0, 180, "Low"
				component = "unknown"
			} else {
				failureProbability = FailureProbability(in.SeverityScore)
				rulDays = EstimatedRULDays(failureProbability)
				severity = Severity(failureProbability)
				component = Component(in.AnomalyType, in.DTCCodes)
			}

			c := models.DiagnosisCase{
				DiagnosisID:        in.DiagnosisID,
				CaseID:             in.CaseID,
				VehicleID:          in.VehicleID,
				Component:          component,
				FailureProbability: failureProbability,
				EstimatedRULDays:   rulDays,
				Severity:           severity,
				ContextEventIDs:    in.ContextEventIDs,
				Status:             models.DiagnosisStatusPendingRCA,
				CreatedAt:          time.Now(),
			}
			if err := st.InsertDiagnosisCase(ctx, c); err != nil {
				return nil, false, fmt.Errorf("insert diagnosis case: %w", err)
			}
			if err := st.AdvanceAnomalyStatus(ctx, in.CaseID, models.AnomalyStatusDiagnosing); err != nil {
				return nil, false, fmt.Errorf("advance anomaly status: %w", err)
			}
			if wh != nil {
				wh.Mirror(store.TableDiagnosisCases, c)
			}

			return map[string]any{
				"diagnosis_id":        in.DiagnosisID,
				"case_id":             in.CaseID,
				"vehicle_id":          in.VehicleID,
				"component":           component,
				"failure_probability": failureProbability,
				"estimated_rul_days":  rulDays,
				"severity":            severity,
				"confidence":          1 - failureProbability,
			}, true, nil
		},
	}
}
