package util

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetEndpointConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("keepalive-interval", 3*time.Second)
	viper.Set("no-keepalive", true)
	viper.Set("call-timeout", time.Second)
	viper.Set("write-buffer", 4)
	viper.Set("reconnect", -1)
	viper.Set("tcp-linger", -1)

	config := GetEndpointConfig()
	assert.Equal(t, 3*time.Second, config.KeepAliveInterval)
	assert.False(t, config.SendKeepAlives)
	assert.Equal(t, time.Second, config.CallTimeout)
	assert.Equal(t, 4096, config.WriteBufferSize)
	assert.True(t, config.AutoReconnect)
	assert.Equal(t, common.UnlimitedReconnectAttempts, config.MaxReconnectAttempts)
	assert.Equal(t, common.DefaultReconnectDelay, config.ReconnectDelay)
	assert.Equal(t, -1, config.TCPLingerSec)
}

func TestSelectors(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, name := range []string{"json", "gob", "binary"} {
		viper.Set("serializer", name)
		s, err := GetSerializer()
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	viper.Set("serializer", "xml")
	_, err := GetSerializer()
	assert.Error(t, err)

	for _, name := range []string{"tcp", "unix"} {
		viper.Set("transport", name)
		c, err := GetClientConnector(time.Second)
		require.NoError(t, err)
		assert.Equal(t, name, c.GetName())
		_, err = GetServerConnector()
		require.NoError(t, err)
	}
	viper.Set("transport", "http")
	_, err = GetClientConnector(time.Second)
	assert.Error(t, err)

	for _, framing := range []string{"read", "line", "length"} {
		viper.Set("framing", framing)
		_, err := GetFrameReader()
		assert.NoError(t, err)
	}
	viper.Set("framing", "bogus")
	_, err = GetFrameReader()
	assert.Error(t, err)
}
