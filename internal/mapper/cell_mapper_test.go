package mapper

import (
	"testing"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/model"
	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestToDomainOrdered(t *testing.T) {
	m := NewCellMapper()
	cells := []*entity.Cell{
		{Id: "a", Position: 0, Content: "A"},
		{Id: "b", Position: 1, Content: "B"},
		{Id: "c", Position: 5, Content: "C"},
		{Id: "d", Position: 2, Content: "D"},
	}

	out := m.ToDomainOrdered([]string{"c", "missing", "a", "c"}, cells)

	require.Len(t, out, 4)
	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.ID
		assert.Equal(t, i, c.Order)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}

func TestProcessingConfigRoundTrip(t *testing.T) {
	m := NewCellMapper()
	sessionId := uuid.New()
	cell := notebook.Cell{
		ID:      "cell-1",
		Kind:    notebook.KindAIResponse,
		Content: "answer",
		ProcessingConfig: &notebook.ProcessingConfig{
			Trigger:    notebook.TriggerOnDependencyChange,
			References: []string{"cell-0"},
		},
		Modifiers: []notebook.Modifier{{ID: "m1", Name: "shorter", VersionID: "v1"}},
	}

	stored := m.ToModel(m.FromDomain(sessionId, cell))
	assert.Equal(t, sessionId, stored.SessionId)
	assert.JSONEq(t, `{"trigger":"on-dependency-change","references":["cell-0"]}`, string(stored.ProcessingConfig))

	back := m.ToDomain(m.ToEntity(stored))
	require.NotNil(t, back.ProcessingConfig)
	assert.Equal(t, notebook.TriggerOnDependencyChange, back.ProcessingConfig.Trigger)
	assert.Equal(t, []string{"cell-0"}, back.ProcessingConfig.References)
	require.Len(t, back.Modifiers, 1)
	assert.Equal(t, "shorter", back.Modifiers[0].Name)
}

func TestMalformedProcessingConfigIsIgnored(t *testing.T) {
	m := NewCellMapper()

	e := m.ToEntity(&model.Cell{Id: "x", ProcessingConfig: datatypes.JSON(`{not json`)})
	assert.Nil(t, e.ProcessingConfig)

	e = m.ToEntity(&model.Cell{Id: "y", ProcessingConfig: datatypes.JSON(`null`)})
	assert.Nil(t, e.ProcessingConfig)
}
