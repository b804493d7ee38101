package kube

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyClusterOperations_RetriesFactoryUntilSuccess(t *testing.T) {
	attempts := 0
	lazy := NewLazyClusterOperations(func() (ClusterOperations, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("kubeconfig not written yet")
		}
		ops, _ := setupOperations()
		return ops, nil
	})

	assert.Error(t, lazy.ClusterReachable(context.Background()))
	assert.Error(t, lazy.ClusterReachable(context.Background()))
	assert.NoError(t, lazy.ClusterReachable(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestLazyClusterOperations_CachesDelegateAfterFirstSuccess(t *testing.T) {
	attempts := 0
	lazy := NewLazyClusterOperations(func() (ClusterOperations, error) {
		attempts++
		ops, _ := setupOperations()
		return ops, nil
	})

	require.NoError(t, lazy.ClusterReachable(context.Background()))
	require.NoError(t, lazy.EnsureNamespace(context.Background(), "jmeter"))
	assert.Equal(t, 1, attempts)
}

func TestLazyClusterOperations_RebuildsDelegateAfterReset(t *testing.T) {
	attempts := 0
	lazy := NewLazyClusterOperations(func() (ClusterOperations, error) {
		attempts++
		ops, _ := setupOperations()
		return ops, nil
	})

	require.NoError(t, lazy.ClusterReachable(context.Background()))
	lazy.Reset()
	require.NoError(t, lazy.ClusterReachable(context.Background()))
	assert.Equal(t, 2, attempts)
}
