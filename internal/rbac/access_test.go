package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRuleStore struct {
	rules map[string][]string
	err   error
}

func (s *stubRuleStore) AllowedRoles(ctx context.Context, path string) ([]string, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	roles, ok := s.rules[path]
	if !ok {
		return nil, false, nil
	}
	return roles, true, nil
}

func TestDecideUnmappedPathAllowsEveryone(t *testing.T) {
	svc := NewAccessService(&stubRuleStore{rules: map[string][]string{}})

	allowed, err := svc.Decide(context.Background(), "/reports", []string{"Operator"})
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.Decide(context.Background(), "/reports", nil)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestDecideMappedPathRequiresIntersection(t *testing.T) {
	svc := NewAccessService(&stubRuleStore{rules: map[string][]string{
		"/users": {"Operator", "Manager"},
	}})

	allowed, err := svc.Decide(context.Background(), "/users", []string{"Support", "Operator"})
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.Decide(context.Background(), "/users", []string{"Support"})
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestDecideEmptyAllowedSetDeniesAll(t *testing.T) {
	svc := NewAccessService(&stubRuleStore{rules: map[string][]string{
		"/locked": {},
	}})

	allowed, err := svc.Decide(context.Background(), "/locked", []string{"Operator", "Manager", "Support"})
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestDecidePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("store down")
	svc := NewAccessService(&stubRuleStore{err: storeErr})

	allowed, err := svc.Decide(context.Background(), "/users", []string{"Operator"})
	require.ErrorIs(t, err, storeErr)
	require.False(t, allowed)
}
