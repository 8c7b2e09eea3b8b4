package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusConfirmed, StatusRescheduled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusRescheduled, StatusRescheduled, true},
		{StatusRescheduled, StatusCancelled, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusRescheduled, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusConfirmed, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusConfirmed.Active())
	assert.True(t, StatusRescheduled.Active())
	assert.False(t, StatusCancelled.Active())
	assert.False(t, Status("pending").Valid())
}

func TestNotificationPreferenceChannels(t *testing.T) {
	assert.True(t, NotifyEmail.WantsEmail())
	assert.False(t, NotifyEmail.WantsSMS())
	assert.True(t, NotifySMS.WantsSMS())
	assert.False(t, NotifySMS.WantsEmail())
	assert.True(t, NotifyBoth.WantsEmail())
	assert.True(t, NotifyBoth.WantsSMS())
	assert.False(t, NotificationPreference("fax").Valid())
}

func TestSlotKeyAndDisplayName(t *testing.T) {
	key := SlotKey{ProviderID: 7, Date: "2025-03-10", Time: "09:00"}
	assert.Equal(t, "7:2025-03-10:09:00", key.String())

	appt := Appointment{ProviderID: 7, Date: "2025-03-10", Time: "09:00"}
	assert.Equal(t, key, appt.Slot())

	p := Provider{FirstName: "Sarah", LastName: "Johnson", Title: "MD"}
	assert.Equal(t, "Dr. Sarah Johnson, MD", p.DisplayName())
}
