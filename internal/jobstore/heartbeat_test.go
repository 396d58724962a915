package jobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeartbeatName(t *testing.T) {
	hb, ok := parseHeartbeatName("120_1700000000_my_podcast_episode.mp3")
	require.True(t, ok)
	assert.Equal(t, 120, hb.EstimateSeconds)
	assert.Equal(t, "my_podcast_episode.mp3", hb.Filename)
}

func TestParseHeartbeatNameRejectsMalformed(t *testing.T) {
	_, ok := parseHeartbeatName("not-a-heartbeat")
	assert.False(t, ok)
}

func TestEstimateSecondsDividesByDeviceAndMode(t *testing.T) {
	d := 600 * time.Second

	assert.Equal(t, 60, EstimateSeconds(d, true, "cpu"))
	assert.Equal(t, 120, EstimateSeconds(d, true, "mps"))
	assert.Equal(t, 100, EstimateSeconds(d, false, "cpu"))
	assert.Equal(t, 200, EstimateSeconds(d, false, "mps"))
}

func TestEstimateSecondsDefaultsWhenUnknown(t *testing.T) {
	assert.Equal(t, 60, EstimateSeconds(0, true, "cpu"))
}
