package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryTimelineRepo struct {
	entries []Entry
	err     error

	lastOffset int
	lastLimit  int
	lastFilter Filters
}

func (r *memoryTimelineRepo) Timeline(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.lastOffset = offset
	r.lastLimit = limit
	r.lastFilter = filters
	if offset >= len(r.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return r.entries[offset:end], nil
}

func timelineEntries(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{ID: int64(n - i), Action: ActionUpdate, Entity: EntityUser, EntityID: fmt.Sprint(n - i)}
	}
	return entries
}

func TestTimelineFirstPageWithNext(t *testing.T) {
	repo := &memoryTimelineRepo{entries: timelineEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{})
	require.NoError(t, err)

	require.Len(t, result.Entries, 20)
	require.Equal(t, int64(25), result.Entries[0].ID)
	require.Equal(t, 0, repo.lastOffset)
	require.Equal(t, 21, repo.lastLimit)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
}

func TestTimelineLastPageHasNoNext(t *testing.T) {
	repo := &memoryTimelineRepo{entries: timelineEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{Page: 2})
	require.NoError(t, err)

	require.Len(t, result.Entries, 5)
	require.Equal(t, 20, repo.lastOffset)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Zero(t, result.Paging.NextPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &memoryTimelineRepo{entries: timelineEntries(120)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Entries, 50)
	require.Equal(t, 50, result.Paging.PageSize)
	require.Equal(t, 51, repo.lastLimit)
}

func TestTimelineNormalizesPage(t *testing.T) {
	repo := &memoryTimelineRepo{entries: timelineEntries(5)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{Page: -3})
	require.NoError(t, err)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, 0, repo.lastOffset)
}

func TestTimelinePassesFiltersThrough(t *testing.T) {
	repo := &memoryTimelineRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), Filters{Action: ActionDelete, Entity: EntityRole, EntityID: "7"})
	require.NoError(t, err)
	require.Equal(t, ActionDelete, repo.lastFilter.Action)
	require.Equal(t, EntityRole, repo.lastFilter.Entity)
	require.Equal(t, "7", repo.lastFilter.EntityID)
}

func TestTimelinePropagatesRepositoryError(t *testing.T) {
	repoErr := errors.New("timeline query failed")
	svc := NewService(&memoryTimelineRepo{err: repoErr})

	_, err := svc.Timeline(context.Background(), Filters{})
	require.ErrorIs(t, err, repoErr)
}
