package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBookingStatus(t *testing.T) {
	for status := range bookingStatuses {
		parsed, err := ParseBookingStatus(string(status))
		assert.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	_, err := ParseBookingStatus("PAID")
	assert.Error(t, err)
	_, err = ParseBookingStatus("")
	assert.Error(t, err)
}

func TestBookingStatus_Settled(t *testing.T) {
	assert.True(t, BookingStatusPaid.Settled())
	assert.True(t, BookingStatusReversed.Settled())
	assert.True(t, BookingStatusRefunded.Settled())
	assert.False(t, BookingStatusPending.Settled())
	assert.False(t, BookingStatusFailed.Settled())
	assert.False(t, BookingStatusCancelled.Settled())
}
