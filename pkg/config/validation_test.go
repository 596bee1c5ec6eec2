package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/blackbox-go/pkg/core"
)

func TestValidateStruct(t *testing.T) {
	t.Run("valid params pass", func(t *testing.T) {
		p := core.Params{Dimension: 3, Budget: 100, NumWorkers: 2, Seed: 1}
		assert.NoError(t, Validate(&p))
	})

	t.Run("non-positive dimension fails", func(t *testing.T) {
		p := core.Params{Dimension: 0}
		err := Validate(&p)
		require.Error(t, err)

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.NotEmpty(t, verrs)
		assert.Equal(t, "Dimension", verrs[0].Field)
		assert.Contains(t, verrs[0].Error(), "greater than 0")
	})

	t.Run("negative budget fails", func(t *testing.T) {
		p := core.Params{Dimension: 3, Budget: -1}
		err := Validate(&p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Budget")
	})

	t.Run("multiple failures are aggregated", func(t *testing.T) {
		p := core.Params{Dimension: -2, Budget: -1, NumWorkers: -1}
		err := Validate(&p)
		require.Error(t, err)

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 3)
	})
}

func TestValidationErrorMessages(t *testing.T) {
	t.Run("explicit message wins", func(t *testing.T) {
		e := ValidationError{Field: "Dimension", Message: "custom"}
		assert.Equal(t, "custom", e.Error())
	})

	t.Run("fallback message names the field", func(t *testing.T) {
		e := ValidationError{Field: "Dimension"}
		assert.Equal(t, "Dimension failed validation", e.Error())
	})

	t.Run("empty list renders empty", func(t *testing.T) {
		assert.Equal(t, "", ValidationErrors{}.Error())
	})

	t.Run("list joins messages", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "A", Message: "a bad"},
			{Field: "B", Message: "b bad"},
		}
		assert.Equal(t, "validation failed: a bad; b bad", errs.Error())
	})
}

func TestGetValidatorSingleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	assert.Same(t, v1, v2)
}
