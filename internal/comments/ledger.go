// Package comments implements the threaded, paginated discussion attached to
// a request. Comments are append-only: no update or delete operations exist,
// which keeps concurrent posting safe without coordination.
package comments

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// RootPageSize is the number of root comments per page.
const RootPageSize = 3

// ReplyPreview is how many replies are eagerly included at any non-root
// level; the remainder is fetched on demand with Expand.
const ReplyPreview = 3

// Store is the persistence interface for comments, implemented by the
// repository layer and by in-memory stores in tests.
type Store interface {
	Insert(ctx context.Context, c *domain.Comment) error
	// ListByRequest returns every comment on a request, oldest first.
	ListByRequest(ctx context.Context, requestID string) ([]*domain.Comment, error)
	Get(ctx context.Context, id string) (*domain.Comment, error)
	MarkQuery(ctx context.Context, id string) error
}

// Node is one comment with its eagerly loaded replies.
type Node struct {
	Comment *domain.Comment `json:"comment"`
	Replies []*Node         `json:"replies,omitempty"`
	// HiddenReplies counts direct replies beyond the preview, available
	// through Expand.
	HiddenReplies int `json:"hiddenReplies,omitempty"`
}

// Thread is one page of a request's discussion.
type Thread struct {
	Roots          []*Node `json:"roots"`
	Page           int     `json:"page"`
	TotalRootPages int     `json:"totalRootPages"`
}

// Ledger reads and appends request comments.
type Ledger struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option overrides a Ledger default.
type Option func(*Ledger)

// WithClock fixes the ledger's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator fixes the ledger's ID source.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// New creates a comment ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post appends a comment, optionally as a reply. The parent must exist on the
// same request.
func (l *Ledger) Post(ctx context.Context, requestID string, sess domain.Session, text string, parentID *string) (*domain.Comment, error) {
	if text == "" {
		return nil, apperrors.InvalidInput("text", "comment text is required")
	}
	// The cap is in characters, not bytes; multibyte text counts by rune.
	if utf8.RuneCountInString(text) > domain.MaxCommentLength {
		return nil, apperrors.InvalidInput("text", "comment text exceeds 1000 characters")
	}
	if !sess.Role.IsValid() {
		return nil, apperrors.InvalidInput("role", "unknown role "+string(sess.Role))
	}
	if parentID != nil {
		parent, err := l.store.Get(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.RequestID != requestID {
			return nil, apperrors.InvalidInput("parentCommentId",
				"parent comment belongs to a different request")
		}
	}

	c := &domain.Comment{
		ID:              l.newID(),
		RequestID:       requestID,
		Author:          domain.Requester{UserID: sess.UserID, DisplayName: sess.DisplayName},
		Role:            sess.Role,
		Text:            text,
		CreatedAt:       l.now(),
		ParentCommentID: parentID,
	}
	if err := l.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns one page of root comments with their reply previews.
// Pagination applies to roots only; page is 1-based.
func (l *Ledger) List(ctx context.Context, requestID string, page int) (*Thread, error) {
	if page < 1 {
		page = 1
	}
	all, err := l.store.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	children := childIndex(all)
	var roots []*domain.Comment
	for _, c := range all {
		if c.ParentCommentID == nil {
			roots = append(roots, c)
		}
	}

	totalPages := (len(roots) + RootPageSize - 1) / RootPageSize
	start := (page - 1) * RootPageSize
	if start > len(roots) {
		start = len(roots)
	}
	end := start + RootPageSize
	if end > len(roots) {
		end = len(roots)
	}

	thread := &Thread{Page: page, TotalRootPages: totalPages, Roots: make([]*Node, 0, end-start)}
	for _, root := range roots[start:end] {
		thread.Roots = append(thread.Roots, buildNode(root, children))
	}
	return thread, nil
}

// Expand returns all direct replies of a comment, each with its own nested
// preview.
func (l *Ledger) Expand(ctx context.Context, commentID string) ([]*Node, error) {
	c, err := l.store.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	all, err := l.store.ListByRequest(ctx, c.RequestID)
	if err != nil {
		return nil, err
	}

	children := childIndex(all)
	nodes := make([]*Node, 0, len(children[commentID]))
	for _, reply := range children[commentID] {
		nodes = append(nodes, buildNode(reply, children))
	}
	return nodes, nil
}

// AllComments returns the full flat discussion, oldest first. Unread checks
// scan it without pagination.
func (l *Ledger) AllComments(ctx context.Context, requestID string) ([]*domain.Comment, error) {
	return l.store.ListByRequest(ctx, requestID)
}

// MarkQueryComment links a comment to a QUERY action for audit display.
func (l *Ledger) MarkQueryComment(ctx context.Context, commentID string) error {
	return l.store.MarkQuery(ctx, commentID)
}

// childIndex groups comments by parent ID, preserving creation order.
func childIndex(all []*domain.Comment) map[string][]*domain.Comment {
	children := make(map[string][]*domain.Comment)
	for _, c := range all {
		if c.ParentCommentID != nil {
			children[*c.ParentCommentID] = append(children[*c.ParentCommentID], c)
		}
	}
	return children
}

// buildNode assembles a comment with up to ReplyPreview eagerly loaded
// replies per level.
func buildNode(c *domain.Comment, children map[string][]*domain.Comment) *Node {
	node := &Node{Comment: c}
	replies := children[c.ID]
	preview := len(replies)
	if preview > ReplyPreview {
		preview = ReplyPreview
	}
	for _, reply := range replies[:preview] {
		node.Replies = append(node.Replies, buildNode(reply, children))
	}
	node.HiddenReplies = len(replies) - preview
	return node
}
