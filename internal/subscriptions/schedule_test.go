package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

// Monday 2025-06-02 07:00 IST-ish fixed instant for deterministic weekday math.
var testNow = time.Date(2025, time.June, 2, 7, 0, 0, 0, time.UTC)

func TestComputeNextDeliveryDaily(t *testing.T) {
	next, err := ComputeNextDelivery(enums.SubscriptionFrequencyDaily, "08:00", nil, testNow.AddDate(0, 0, -10), testNow)
	require.NoError(t, err)

	assert.True(t, next.After(testNow))
	// same day at 08:00 since that is still ahead of 07:00
	assert.Equal(t, time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC), next)
}

func TestComputeNextDeliveryDailyRollsToTomorrow(t *testing.T) {
	next, err := ComputeNextDelivery(enums.SubscriptionFrequencyDaily, "06:00", nil, testNow.AddDate(0, 0, -10), testNow)
	require.NoError(t, err)

	assert.True(t, next.After(testNow))
	assert.Equal(t, time.Date(2025, time.June, 3, 6, 0, 0, 0, time.UTC), next)
	assert.LessOrEqual(t, next.Sub(testNow), 24*time.Hour)
}

func TestComputeNextDeliveryWeekly(t *testing.T) {
	// start two weeks back, delivery at 06:00, now Monday 07:00:
	// the slot for today is already past, so next Monday 06:00.
	start := testNow.AddDate(0, 0, -14)
	next, err := ComputeNextDelivery(enums.SubscriptionFrequencyWeekly, "06:00", nil, start, testNow)
	require.NoError(t, err)

	assert.True(t, next.After(testNow))
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, time.Date(2025, time.June, 9, 6, 0, 0, 0, time.UTC), next)
}

func TestComputeNextDeliveryFutureReference(t *testing.T) {
	// reference ahead of now starts the search there, not at now
	reference := testNow.AddDate(0, 0, 5)
	next, err := ComputeNextDelivery(enums.SubscriptionFrequencyDaily, "09:30", nil, reference, testNow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.June, 7, 9, 30, 0, 0, time.UTC), next)
}

func TestComputeNextDeliveryCustomDays(t *testing.T) {
	mask := []string{"monday", "thursday"}

	for day := 0; day < 14; day++ {
		now := testNow.AddDate(0, 0, day)
		next, err := ComputeNextDelivery(enums.SubscriptionFrequencyCustom, "10:00", mask, now.AddDate(0, 0, -30), now)
		require.NoError(t, err)

		assert.True(t, next.After(now))
		assert.Contains(t, []time.Weekday{time.Monday, time.Thursday}, next.Weekday())
	}
}

func TestComputeNextDeliveryCustomSkipsDisallowedToday(t *testing.T) {
	// now is Monday 07:00; only fridays allowed
	next, err := ComputeNextDelivery(enums.SubscriptionFrequencyCustom, "08:00", []string{"friday"}, testNow, testNow)
	require.NoError(t, err)

	assert.Equal(t, time.Friday, next.Weekday())
	assert.Equal(t, time.Date(2025, time.June, 6, 8, 0, 0, 0, time.UTC), next)
}

func TestComputeNextDeliveryCustomEmptyMask(t *testing.T) {
	_, err := ComputeNextDelivery(enums.SubscriptionFrequencyCustom, "08:00", nil, testNow, testNow)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSchedule))
}

func TestComputeNextDeliveryCustomUnknownDay(t *testing.T) {
	_, err := ComputeNextDelivery(enums.SubscriptionFrequencyCustom, "08:00", []string{"someday"}, testNow, testNow)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSchedule))
}

func TestComputeNextDeliveryValidatesTime(t *testing.T) {
	for _, bad := range []string{"", "25:00", "12:61", "8am", "08:0"} {
		_, err := ComputeNextDelivery(enums.SubscriptionFrequencyDaily, bad, nil, testNow, testNow)
		require.Error(t, err, "time %q", bad)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "time %q", bad)
	}
}

func TestComputeNextDeliveryInvalidFrequency(t *testing.T) {
	_, err := ComputeNextDelivery(enums.SubscriptionFrequency("monthly"), "08:00", nil, testNow, testNow)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestComputeNextDeliveryAlwaysStrictlyAfterNow(t *testing.T) {
	times := []string{"00:00", "06:15", "12:00", "23:59"}
	frequencies := []enums.SubscriptionFrequency{
		enums.SubscriptionFrequencyDaily,
		enums.SubscriptionFrequencyWeekly,
	}
	for _, freq := range frequencies {
		for _, tod := range times {
			for day := 0; day < 7; day++ {
				now := testNow.AddDate(0, 0, day)
				next, err := ComputeNextDelivery(freq, tod, nil, now.AddDate(0, 0, -3), now)
				require.NoError(t, err)
				assert.True(t, next.After(now), "freq=%s tod=%s day=%d", freq, tod, day)
			}
		}
	}
}
