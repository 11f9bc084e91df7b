package client

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/dSock/rpc/codec"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
)

func TestRawClientRejectsRequests(t *testing.T) {
	eng := engine.New(common.EngineConfig{})
	defer eng.Shutdown()

	c := NewRawClient(eng, tcp.NewTCPClientConnector(time.Second), codec.DelimitedFrameReader('\n'), "127.0.0.1:1", common.DefaultEndpointConfig())
	defer c.Kill()

	_, err := c.Call([]byte("x"))
	assert.ErrorIs(t, err, common.ErrInvalidState)

	_, err = c.Request([]byte("x"), time.Second)
	assert.ErrorIs(t, err, common.ErrInvalidState)

	_, err = c.RequestContext(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, common.ErrInvalidState)

	assert.Zero(t, eng.Calls().Len())
}
