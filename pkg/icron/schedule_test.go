package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_EveryTenMinutes(t *testing.T) {
	ref := time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC)

	info, err := GetTriggerInfo("*/10 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 12, 40, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 6*time.Minute, info.TimeUntilNext)
	assert.Equal(t, 4*time.Minute, info.TimeSinceLast)
}

func TestGetTriggerInfo_SecondsField(t *testing.T) {
	ref := time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC)

	info, err := GetTriggerInfo("30 */10 * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 40, 30, 0, time.UTC), info.Next)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("@every 5m"))
	require.Error(t, Validate("not a cron"))
}
