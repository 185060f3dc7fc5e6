package video

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001"), 0.001)
	assert.Equal(t, 25.0, parseRate("25/1"))
	assert.Equal(t, 24.0, parseRate("24"))
	assert.Equal(t, 0.0, parseRate("0/0"))
	assert.Equal(t, 0.0, parseRate("garbage"))
}

func TestProbeOutputDecoding(t *testing.T) {
	payload := `{
		"streams": [{
			"width": 1920, "height": 1080,
			"codec_name": "h264",
			"r_frame_rate": "25/1",
			"nb_frames": "250"
		}],
		"format": {"duration": "10.000000"}
	}`
	var out probeOutput
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	require.Len(t, out.Streams, 1)
	assert.Equal(t, 1920, out.Streams[0].Width)
	assert.Equal(t, "250", out.Streams[0].NbFrames)
	assert.Equal(t, "10.000000", out.Format.Duration)
}
