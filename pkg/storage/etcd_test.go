package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/client/v2"
)

func TestMapEtcdError(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{name: "key not found", code: client.ErrorCodeKeyNotFound, want: ErrKeyNotFound},
		{name: "test failed", code: client.ErrorCodeTestFailed, want: ErrTestFailed},
		{name: "not a file", code: client.ErrorCodeNotFile, want: ErrNotFile},
		{name: "not a dir", code: client.ErrorCodeNotDir, want: ErrNotDir},
		{name: "node exists", code: client.ErrorCodeNodeExist, want: ErrNodeExist},
		{name: "dir not empty", code: client.ErrorCodeDirNotEmpty, want: ErrDirNotEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapEtcdError(client.Error{Code: tt.code, Message: tt.name}, "/k")
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "/k")
		})
	}
}

func TestMapEtcdErrorPassthrough(t *testing.T) {
	assert.NoError(t, mapEtcdError(nil, "/k"))

	cause := errors.New("connection refused")
	err := mapEtcdError(cause, "/k")
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsKeyNotFound(err))

	err = mapEtcdError(client.Error{Code: 110, Message: "unauthorized"}, "/k")
	assert.False(t, IsKeyNotFound(err))
	assert.Error(t, err)
}

func TestConvertNode(t *testing.T) {
	in := &client.Node{
		Key: "/calico",
		Dir: true,
		Nodes: client.Nodes{
			{Key: "/calico/a", Value: "1"},
			{Key: "/calico/b", Dir: true, Nodes: client.Nodes{
				{Key: "/calico/b/c", Value: "2"},
			}},
		},
	}

	out := convertNode(in)
	assert.Equal(t, []string{"/calico/a", "/calico/b/c"}, keys(out.Leaves()))
	assert.True(t, out.Nodes[1].Dir)
	assert.Nil(t, convertNode(nil))
}
