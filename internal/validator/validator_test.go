package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/model"
)

func TestSchoolValidation(t *testing.T) {
	valid := model.School{Name: "Lincoln Tech", Zip: "07506", State: "NJ"}
	assert.Nil(t, Struct(valid))

	noState := valid
	noState.State = ""
	assert.Nil(t, Struct(noState))

	bad := model.School{Zip: "0750", State: "New Jersey"}
	fields := Struct(bad)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "name")
	assert.Equal(t, "zip must be a 5-digit zip code", fields["zip"])
	assert.Contains(t, fields, "state")
}

func TestCrosswalkValidation(t *testing.T) {
	e := model.CrosswalkEntry{CIPCode: "46.0302", SOCCode: "47-2111", Confidence: 100, Source: model.SourceCurated}
	assert.Nil(t, Struct(e))

	e.SOCCode = "472111"
	fields := Struct(e)
	require.NotNil(t, fields)
	assert.Equal(t, "soc_code must be an occupation code like 47-2111", fields["soc_code"])

	e.SOCCode = "47-2111"
	e.Confidence = 101
	e.Source = "guess"
	fields = Struct(e)
	assert.Contains(t, fields, "confidence_score")
	assert.Contains(t, fields, "source")
}

func TestTranslateErrorsPlain(t *testing.T) {
	Setup()
	assert.Equal(t, map[string]string{"detail": "boom"}, TranslateErrors(errors.New("boom")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "a is bad; b is bad", Format(map[string]string{"y": "b is bad", "x": "a is bad"}))
	assert.Equal(t, "", Format(nil))
}
