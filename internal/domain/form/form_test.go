package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-connector/internal/domain/entities"
)

func TestNextMissingFollowsFormOrder(t *testing.T) {
	conv := &entities.Conversation{City: "Oran"}

	field, ok := WorkerForm.NextMissing(conv)
	require.True(t, ok)
	assert.Equal(t, entities.FieldGender, field.Key)

	conv.Gender = "femme"
	field, ok = WorkerForm.NextMissing(conv)
	require.True(t, ok)
	assert.Equal(t, entities.FieldExperience, field.Key)

	conv.Experience = "5 ans"
	conv.Phone = "0555123456"
	_, ok = WorkerForm.NextMissing(conv)
	assert.False(t, ok)
	assert.True(t, WorkerForm.Complete(conv))
}

func TestApplyNeverOverwritesFilledFields(t *testing.T) {
	conv := &entities.Conversation{City: "Oran"}

	applied := WorkerForm.Apply(conv, map[string]string{
		entities.FieldCity:   "Alger",
		entities.FieldGender: "راجل",
		entities.FieldPhone:  "pas de numéro",
	})

	assert.Equal(t, []string{entities.FieldGender}, applied)
	assert.Equal(t, "Oran", conv.City)
	assert.Equal(t, "homme", conv.Gender)
	assert.Empty(t, conv.Phone)
}

func TestApplyIgnoresFieldsOutsideForm(t *testing.T) {
	conv := &entities.Conversation{}

	applied := WorkerForm.Apply(conv, map[string]string{entities.FieldAddress: "Rue 1"})

	assert.Empty(t, applied)
	assert.Empty(t, conv.Address)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		key  string
		raw  string
		want string
		err  error
	}{
		{entities.FieldQuantity, "نحب ٣ حبات", "3", nil},
		{entities.FieldQuantity, "0", "", ErrInvalidValue},
		{entities.FieldProductCode, "rb 102", "RB102", nil},
		{entities.FieldProductCode, "robe bleue", "", ErrInvalidValue},
		{entities.FieldGender, "Je suis une femme", "femme", nil},
		{entities.FieldGender, "peut-être", "", ErrInvalidValue},
		{entities.FieldPhone, "+213 555 12 34 56", "0555123456", nil},
		{entities.FieldCity, "  وهران ", "وهران", nil},
		{entities.FieldCity, "   ", "", ErrEmptyValue},
	}

	for _, tc := range cases {
		got, err := Normalize(tc.key, tc.raw)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestResetClearsOnlyNamedFields(t *testing.T) {
	conv := &entities.Conversation{ProductCode: "RB102", Quantity: 2, Phone: "0555123456", Address: "Oran"}

	OrderForm.Reset(conv, entities.FieldProductCode, entities.FieldQuantity)

	assert.Empty(t, conv.ProductCode)
	assert.Zero(t, conv.Quantity)
	assert.Equal(t, "0555123456", conv.Phone)

	field, ok := OrderForm.NextMissing(conv)
	require.True(t, ok)
	assert.Equal(t, entities.FieldProductCode, field.Key)
}

func TestForFlowDefaultsToWorker(t *testing.T) {
	assert.Equal(t, entities.FlowWorker, ForFlow("").Flow)
	assert.Equal(t, entities.FlowOrder, ForFlow(entities.FlowOrder).Flow)
}
