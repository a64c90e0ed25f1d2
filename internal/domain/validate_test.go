package domain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassenger(t *testing.T) {
	assert.NoError(t, ValidatePassenger(validPassenger(1)))

	p := validPassenger(1)
	p.Email = "not-an-email"
	p.Class = "Level 500"
	p.FullName = ""

	err := ValidatePassenger(p)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "class")
	assert.Equal(t, "is required", ve.Fields["full_name"])
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestValidateTrip(t *testing.T) {
	assert.NoError(t, ValidateTrip(validTrip()))

	trip := validTrip()
	trip.DepartureDate = "18/12/2026"
	trip.ContactPersonPhone = "abc"
	trip.Referral = ""

	err := ValidateTrip(trip)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 3)
	assert.Contains(t, ve.Fields, "departure_date")
	assert.Contains(t, ve.Fields, "contact_person_phone")
	assert.Contains(t, ve.Fields, "referral")
}

func TestValidatePassengerAt(t *testing.T) {
	p := validPassenger(1)
	p.Phone = ""

	err := ValidatePassengerAt(2, p)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "passengers[2].phone")
}

func TestValidateSeatNumber(t *testing.T) {
	assert.NoError(t, ValidateSeatNumber(1))
	assert.NoError(t, ValidateSeatNumber(SeatCount))
	assert.Error(t, ValidateSeatNumber(0))

	err := ValidateSeatNumber(32)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMergeValidation(t *testing.T) {
	assert.NoError(t, MergeValidation(nil, nil))

	merged := MergeValidation(NewValidationError("a", "x"), nil, NewValidationError("b", "y"))
	var ve *ValidationError
	require.True(t, errors.As(merged, &ve))
	assert.Equal(t, map[string]string{"a": "x", "b": "y"}, ve.Fields)

	other := errors.New("boom")
	assert.Equal(t, other, MergeValidation(NewValidationError("a", "x"), other))
}
