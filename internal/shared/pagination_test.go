package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationComputesTotalPages(t *testing.T) {
	p := NewPagination(2, 20, 45)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 3, p.TotalPages)
	require.True(t, p.HasPrev())
	require.True(t, p.HasNext())
}

func TestNewPaginationClampsInput(t *testing.T) {
	p := NewPagination(0, 0, 5)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
	require.False(t, p.HasPrev())
	require.False(t, p.HasNext())
}

func TestNewPaginationEmptyResult(t *testing.T) {
	p := NewPagination(1, 20, 0)
	require.Zero(t, p.TotalPages)
	require.False(t, p.HasNext())
}
