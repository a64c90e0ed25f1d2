package domain

import "fmt"

// SeatCount is the fixed size of the bus layout.
const SeatCount = 31

const MaxGroupSize = 5

func ValidateSeatNumber(n int) error {
	if n < 1 || n > SeatCount {
		return NewValidationError("seat_number", fmt.Sprintf("must be between 1 and %d", SeatCount))
	}
	return nil
}
