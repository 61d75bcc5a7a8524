package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/mcp-funnel/pkg/kernel/mocks"
	"github.com/stacklok/mcp-funnel/pkg/transport"
	"github.com/stacklok/mcp-funnel/pkg/transport/factory"
)

// These tests use the gomock-generated MockTransport for call-count and
// argument expectations, complementing the hand-written fakeTransport used
// elsewhere in this package for response-stubbing scenarios.

func TestKernelStartPropagatesTransportStartError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mt := mocks.NewMockTransport(ctrl)
	mt.EXPECT().Name().Return("fetch").AnyTimes()
	mt.EXPECT().Start(gomock.Any()).Return(errors.New("dial refused"))

	k, err := New(Config{Servers: []ServerSpec{{ServerConfig: factory.ServerConfig{Name: "fetch"}}}}, nil)
	require.NoError(t, err)
	k.builder = func(_ factory.ServerConfig, _ transport.AuthProvider, _ transport.MessageHandler) (Transport, error) {
		return mt, nil
	}

	err = k.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "dial refused")
}

func TestKernelCloseCallsCloseOnEveryMockedTransport(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mtA := mocks.NewMockTransport(ctrl)
	mtA.EXPECT().Name().Return("a").AnyTimes()
	mtA.EXPECT().Start(gomock.Any()).Return(nil)
	mtA.EXPECT().SendRequest(gomock.Any(), methodToolsList, gomock.Any()).Return([]byte(`{"tools":[]}`), nil)
	mtA.EXPECT().Close().Return(nil)

	mtB := mocks.NewMockTransport(ctrl)
	mtB.EXPECT().Name().Return("b").AnyTimes()
	mtB.EXPECT().Start(gomock.Any()).Return(nil)
	mtB.EXPECT().SendRequest(gomock.Any(), methodToolsList, gomock.Any()).Return([]byte(`{"tools":[]}`), nil)
	mtB.EXPECT().Close().Return(errors.New("already gone"))

	k, err := New(Config{Servers: []ServerSpec{
		{ServerConfig: factory.ServerConfig{Name: "a"}},
		{ServerConfig: factory.ServerConfig{Name: "b"}},
	}}, nil)
	require.NoError(t, err)
	transports := map[string]Transport{"a": mtA, "b": mtB}
	k.builder = func(cfg factory.ServerConfig, _ transport.AuthProvider, _ transport.MessageHandler) (Transport, error) {
		return transports[cfg.Name], nil
	}

	require.NoError(t, k.Start(context.Background()))

	err = k.Close()
	require.Error(t, err, "Close surfaces the first transport close error")
}
