package stageworker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/llmclient/llmstub"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
	testdb "github.com/navigo-fleet/pipeline/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toyInput/toyResult exercise the generic skeleton against the real
// anomaly_cases table without depending on pkg/stages/anomaly.
type toyInput struct {
	VehicleID string
	CaseID    string
}

type toyResult struct {
	AnomalyType string
}

func toyDescriptor(outputTopic string) stageworker.Descriptor[toyInput, toyResult] {
	return stageworker.Descriptor[toyInput, toyResult]{
		Name:               "data_analysis",
		OutputTopic:        outputTopic,
		DuplicateTable:     store.TableAnomalyCases,
		DuplicateKeyColumn: "vehicle_id",
		ExtractDuplicateKey: func(env bus.Envelope) (string, error) {
			return env.String("vehicle_id"), nil
		},
		IsAdvanced: func(status string) bool { return false },
		FetchPrerequisites: func(ctx context.Context, st *store.Store, env bus.Envelope) (toyInput, error) {
			return toyInput{VehicleID: env.String("vehicle_id"), CaseID: "case_" + env.String("vehicle_id")}, nil
		},
		AssemblePrompt: func(in toyInput) (string, error) {
			return "classify vehicle " + in.VehicleID, nil
		},
		ParseAndNormalize: func(raw string, in toyInput) (toyResult, error) {
			var r toyResult
			if err := json.Unmarshal([]byte(raw), &r); err != nil {
				return toyResult{}, err
			}
			return r, nil
		},
		Commit: func(ctx context.Context, st *store.Store, in toyInput, result toyResult) (map[string]any, bool, error) {
			anomalyType := result.AnomalyType
			if err := st.InsertAnomalyCase(ctx, models.AnomalyCase{
				CaseID:          in.CaseID,
				VehicleID:       in.VehicleID,
				AnomalyDetected: true,
				AnomalyType:     &anomalyType,
				Status:          models.AnomalyStatusPendingDiagnosis,
				CreatedAt:       time.Now(),
			}); err != nil {
				return nil, false, err
			}
			return map[string]any{"case_id": in.CaseID, "vehicle_id": in.VehicleID, "anomaly_type": anomalyType}, true, nil
		},
	}
}

func TestWorkerHandleCommitsAndPublishes(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	st := shared.NewStore(t)
	pub := bus.NewPublisher(st)
	llm := llmstub.New(llmstub.Response{Text: `{"anomaly_type":"thermal_overheat"}`})

	w := stageworker.New(toyDescriptor("anomaly-detected"), st, llm, pub,
		stageworker.WithJitter[toyInput, toyResult](func() time.Duration { return 0 }))

	ctx := context.Background()
	err := w.Handle(ctx, bus.Envelope{"vehicle_id": "veh_123"})
	require.NoError(t, err)

	saved, err := st.GetAnomalyCase(ctx, "case_veh_123")
	require.NoError(t, err)
	assert.True(t, saved.AnomalyDetected)
	require.NotNil(t, saved.AnomalyType)
	assert.Equal(t, "thermal_overheat", *saved.AnomalyType)
}

func TestWorkerHandleSkipsDuplicate(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	st := shared.NewStore(t)
	pub := bus.NewPublisher(st)
	llm := llmstub.New(llmstub.Response{Text: `{"anomaly_type":"thermal_overheat"}`})

	ctx := context.Background()
	anomalyType := "thermal_overheat"
	require.NoError(t, st.InsertAnomalyCase(ctx, models.AnomalyCase{
		CaseID:          "case_veh_dup",
		VehicleID:       "veh_dup",
		AnomalyDetected: true,
		AnomalyType:     &anomalyType,
		Status:          models.AnomalyStatusPendingDiagnosis,
		CreatedAt:       time.Now(),
	}))

	w := stageworker.New(toyDescriptor("anomaly-detected"), st, llm, pub,
		stageworker.WithJitter[toyInput, toyResult](func() time.Duration { return 0 }))

	err := w.Handle(ctx, bus.Envelope{"vehicle_id": "veh_dup"})
	require.NoError(t, err)
	assert.Empty(t, llm.Calls(), "model should not be called when gate A suppresses the delivery")
}
