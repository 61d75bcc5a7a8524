package rpc

import "golang.org/x/exp/jsonrpc2"

func newTestID(n int64) jsonrpc2.ID {
	return jsonrpc2.NewID(n)
}
