package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

type stubBedrock struct {
	text string
	err  error
}

func (s *stubBedrock) InvokeModel(_ context.Context, _ *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"text": s.text}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func planningContext() *Context {
	return &Context{
		ClientID: "client-a",
		Devices: []model.Device{
			{Name: "WIN-SERVER-01", OS: "Windows Server 2022", PendingPatches: 5, CriticalCVEs: 2},
		},
		SLAPolicy: &model.SLAPolicy{PatchWindow: "Saturday 1-3 AM", MaxExposureHours: 24, RollbackThreshold: 0.05},
	}
}

func TestBedrockAdviseParsesModelJSON(t *testing.T) {
	stub := &stubBedrock{text: `Here is the plan you asked for:
{"canary_size": 5, "batches": [30, 30], "health_check_interval_minutes": 10,
 "rollback_threshold_percent": 5, "estimated_duration_hours": 6,
 "notes": "stagger by OS family"}`}
	b := NewBedrock(stub, "anthropic.claude-3-5-haiku-20241022-v1:0", 0)

	advice, err := b.Advise(context.Background(), planningContext())
	require.NoError(t, err)
	assert.Equal(t, 5, advice.CanarySize)
	assert.Equal(t, []int{30, 30}, advice.Batches)
	assert.Equal(t, 6.0, advice.EstimatedDurationHours)
	assert.Equal(t, "stagger by OS family", advice.Notes)
}

func TestBedrockAdviseFallsBackOnError(t *testing.T) {
	b := NewBedrock(&stubBedrock{err: fmt.Errorf("throttled")}, "model", 0)

	advice, err := b.Advise(context.Background(), planningContext())
	require.NoError(t, err)
	assert.Equal(t, DefaultNotes, advice.Notes)
	assert.Equal(t, 6.0, advice.EstimatedDurationHours)
}

func TestBedrockAdviseFallsBackOnGarbageText(t *testing.T) {
	b := NewBedrock(&stubBedrock{text: "I cannot produce a plan right now."}, "model", 0)

	advice, err := b.Advise(context.Background(), planningContext())
	require.NoError(t, err)
	assert.Equal(t, DefaultNotes, advice.Notes)
}

func TestParseAdvice(t *testing.T) {
	advice, err := ParseAdvice(`prefix {"canary_size": 3, "batches": [10], "notes": "ok"} suffix`)
	require.NoError(t, err)
	assert.Equal(t, 3, advice.CanarySize)
	assert.Equal(t, []int{10}, advice.Batches)

	_, err = ParseAdvice("no braces here")
	assert.Error(t, err)

	_, err = ParseAdvice(`{"canary_size": "five"}`)
	assert.Error(t, err)
}

func TestBuildPromptIncludesFleetAndSLA(t *testing.T) {
	prompt := BuildPrompt(planningContext())
	assert.Contains(t, prompt, "WIN-SERVER-01 (Windows Server 2022): 5 patches, 2 critical CVEs")
	assert.Contains(t, prompt, "Maintenance Window: Saturday 1-3 AM")
	assert.Contains(t, prompt, "canary-first")
}
