package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"VolunteerHub/server/internal/models"
)

func TestPoolMembership(t *testing.T) {
	p := NewPool()
	user := models.Actor{Role: models.RoleUser, ID: 7}
	admin := models.Actor{Role: models.RoleAdmin, ID: 7}

	assert.Nil(t, p.GetClient(user))

	p.AddClient(user, nil)
	p.AddClient(admin, nil)

	// same numeric ID under different roles are distinct clients
	assert.NotNil(t, p.GetClient(user))
	assert.NotNil(t, p.GetClient(admin))

	p.RemoveClient(user)
	assert.Nil(t, p.GetClient(user))
	assert.NotNil(t, p.GetClient(admin))
}

func TestPoolRemoveUnknownClient(t *testing.T) {
	p := NewPool()
	// removing an absent client must not panic
	p.RemoveClient(models.Actor{Role: models.RoleUser, ID: 1})
}

func TestSendToOfflineClient(t *testing.T) {
	p := NewPool()
	ok := p.SendTo(models.Actor{Role: models.RoleAdmin, ID: 3}, "chat.created", nil)
	assert.False(t, ok)
}

func TestClientContextCancelledOnRemove(t *testing.T) {
	p := NewPool()
	actor := models.Actor{Role: models.RoleUser, ID: 7}

	p.AddClient(actor, nil)
	client := p.GetClient(actor)
	p.RemoveClient(actor)

	select {
	case <-client.Ctx.Done():
	default:
		t.Fatal("client context should be cancelled after removal")
	}
}
