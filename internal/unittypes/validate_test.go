package unittypes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/models"
)

func fieldNames(err error) []string {
	failures, ok := err.(FieldErrors)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Field)
	}
	return names
}

func TestValidateUnknownType(t *testing.T) {
	err := Validate(models.UnitType("dojo"), map[string]any{})
	require.Error(t, err)
	require.Contains(t, fieldNames(err), "type")
}

func TestValidateRequiredField(t *testing.T) {
	err := Validate(models.UnitTypeClass, map[string]any{})
	require.Error(t, err)
	require.Contains(t, fieldNames(err), "grade")
}

func TestValidateCollectsAllFailures(t *testing.T) {
	err := Validate(models.UnitTypeClass, map[string]any{
		"grade":          7,
		"section":        "this-section-name-is-far-too-long",
		"schema_version": 99,
	})
	require.Error(t, err)

	names := fieldNames(err)
	require.Contains(t, names, "grade")
	require.Contains(t, names, "section")
	require.Contains(t, names, "schema_version")
}

func TestValidateIntField(t *testing.T) {
	require.NoError(t, Validate(models.UnitTypeBatch, map[string]any{"capacity": 25}))

	// JSON decoding yields float64 for numbers.
	require.NoError(t, Validate(models.UnitTypeBatch, map[string]any{"capacity": float64(25)}))

	err := Validate(models.UnitTypeBatch, map[string]any{"capacity": 0})
	require.Error(t, err)
	require.Contains(t, fieldNames(err), "capacity")

	err = Validate(models.UnitTypeBatch, map[string]any{"capacity": 2.5})
	require.Error(t, err)
	require.Contains(t, fieldNames(err), "capacity")
}

func TestValidateFeatureOverrides(t *testing.T) {
	require.NoError(t, Validate(models.UnitTypeClass, map[string]any{
		"grade":    "4",
		"features": map[string]any{"fees": true},
	}))

	err := Validate(models.UnitTypeClass, map[string]any{
		"grade":    "4",
		"features": map[string]any{"teleport": true, "fees": "yes"},
	})
	require.Error(t, err)

	names := fieldNames(err)
	require.Contains(t, names, "features.teleport")
	require.Contains(t, names, "features.fees")
}

func TestEffectiveFeatures(t *testing.T) {
	features, ok := EffectiveFeatures(models.UnitTypeClass, map[string]any{
		"features": map[string]any{"fees": true, "attendance": false},
	})
	require.True(t, ok)
	require.True(t, features[FeatureFees])
	require.False(t, features[FeatureAttendance])
	require.True(t, features[FeatureAssignments])

	_, ok = EffectiveFeatures(models.UnitType("dojo"), nil)
	require.False(t, ok)
}
