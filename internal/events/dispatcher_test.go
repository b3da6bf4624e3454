package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborline/be-procurement-requests/internal/domain"
)

func TestPublishFansOutInOrder(t *testing.T) {
	d := NewDispatcher()

	var first, second []Kind
	d.Subscribe(func(ev Event) { first = append(first, ev.Kind) })
	d.Subscribe(func(ev Event) { second = append(second, ev.Kind) })

	d.Publish(Event{Kind: KindSubmitted, RequestID: "PR-1"})
	d.Publish(Event{Kind: KindApproved, RequestID: "PR-1", ActorRole: domain.RoleHeadOfDepartment})

	assert.Equal(t, []Kind{KindSubmitted, KindApproved}, first)
	assert.Equal(t, []Kind{KindSubmitted, KindApproved}, second)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	d := NewDispatcher()
	assert.NotPanics(t, func() {
		d.Publish(Event{Kind: KindRejected})
	})
}
