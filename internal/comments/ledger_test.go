package comments

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// memStore is an append-only in-memory Store.
type memStore struct {
	comments []*domain.Comment
}

func (s *memStore) Insert(_ context.Context, c *domain.Comment) error {
	s.comments = append(s.comments, c)
	return nil
}

func (s *memStore) ListByRequest(_ context.Context, requestID string) ([]*domain.Comment, error) {
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.RequestID == requestID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Comment, error) {
	for _, c := range s.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.NotFound("comment", id)
}

func (s *memStore) MarkQuery(_ context.Context, id string) error {
	c, err := s.Get(context.Background(), id)
	if err != nil {
		return err
	}
	c.IsQueryComment = true
	return nil
}

func testLedger() (*Ledger, *memStore) {
	store := &memStore{}
	var seq int
	var tick int
	l := New(store,
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("c-%03d", seq) }),
		WithClock(func() time.Time {
			tick++
			return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Minute)
		}),
	)
	return l, store
}

func poster() domain.Session {
	return domain.Session{UserID: "u-1", DisplayName: "A. Officer", Role: domain.RoleProcurementOfficer}
}

func TestPostValidation(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	_, err := l.Post(ctx, "PR-1", poster(), "", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	_, err = l.Post(ctx, "PR-1", poster(), strings.Repeat("x", 1001), nil)
	require.Error(t, err)

	c, err := l.Post(ctx, "PR-1", poster(), strings.Repeat("x", 1000), nil)
	require.NoError(t, err)
	assert.Equal(t, "PR-1", c.RequestID)
	assert.Equal(t, domain.RoleProcurementOfficer, c.Role)

	// The limit counts characters, not bytes: 1000 three-byte runes pass,
	// 1001 fail.
	_, err = l.Post(ctx, "PR-1", poster(), strings.Repeat("購", 1000), nil)
	require.NoError(t, err)

	_, err = l.Post(ctx, "PR-1", poster(), strings.Repeat("購", 1001), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))
}

func TestPostParentMustBeOnSameRequest(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	parent, err := l.Post(ctx, "PR-1", poster(), "root", nil)
	require.NoError(t, err)

	_, err = l.Post(ctx, "PR-2", poster(), "reply", &parent.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	missing := "c-999"
	_, err = l.Post(ctx, "PR-1", poster(), "reply", &missing)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.Code(err))
}

func TestListPaginatesRoots(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := l.Post(ctx, "PR-1", poster(), fmt.Sprintf("root %d", i), nil)
		require.NoError(t, err)
	}

	page1, err := l.List(ctx, "PR-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page1.TotalRootPages)
	assert.Len(t, page1.Roots, 3)

	page3, err := l.List(ctx, "PR-1", 3)
	require.NoError(t, err)
	assert.Len(t, page3.Roots, 1)

	empty, err := l.List(ctx, "PR-1", 4)
	require.NoError(t, err)
	assert.Empty(t, empty.Roots)
}

func TestRepliesPreviewAndExpand(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	root, err := l.Post(ctx, "PR-1", poster(), "root", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := l.Post(ctx, "PR-1", poster(), fmt.Sprintf("reply %d", i), &root.ID)
		require.NoError(t, err)
	}

	thread, err := l.List(ctx, "PR-1", 1)
	require.NoError(t, err)
	require.Len(t, thread.Roots, 1)
	assert.Len(t, thread.Roots[0].Replies, 3)
	assert.Equal(t, 2, thread.Roots[0].HiddenReplies)

	expanded, err := l.Expand(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, expanded, 5)
}

func TestArbitraryDepth(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	parentID := (*string)(nil)
	var last *domain.Comment
	for i := 0; i < 4; i++ {
		c, err := l.Post(ctx, "PR-1", poster(), fmt.Sprintf("depth %d", i), parentID)
		require.NoError(t, err)
		parentID = &c.ID
		last = c
	}

	thread, err := l.List(ctx, "PR-1", 1)
	require.NoError(t, err)
	node := thread.Roots[0]
	for depth := 1; depth < 4; depth++ {
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
	}
	assert.Equal(t, last.ID, node.Comment.ID)
}

func TestMarkQueryComment(t *testing.T) {
	l, store := testLedger()
	ctx := context.Background()

	c, err := l.Post(ctx, "PR-1", poster(), "please add maker part numbers", nil)
	require.NoError(t, err)
	require.NoError(t, l.MarkQueryComment(ctx, c.ID))

	stored, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsQueryComment)
}
