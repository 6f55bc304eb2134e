package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "qsync/pkg/domain"
)

func TestActorDefaultsToSystemUser(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, id.SystemUser, Actor(ctx))
	assert.Equal(t, "", ActorUnit(ctx))

	ctx = WithActor(ctx, "nurse-7", "ICU")
	assert.Equal(t, id.UserID("nurse-7"), Actor(ctx))
	assert.Equal(t, "ICU", ActorUnit(ctx))

	assert.Equal(t, id.SystemUser, Actor(WithActor(context.Background(), "", "")))
}

func TestNowUsesInjectedTime(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}
