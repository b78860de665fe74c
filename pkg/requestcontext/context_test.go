package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "compliancehub/pkg/domain"
)

func TestIdentityAccessors(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserID(ctx).IsNil())
	assert.Empty(t, Role(ctx))
	assert.True(t, FactoryID(ctx).IsZero())

	userID := id.NewUserID()
	ctx = WithIdentity(ctx, userID, id.RoleFactory, "F001")
	assert.Equal(t, userID, UserID(ctx))
	assert.Equal(t, id.RoleFactory, Role(ctx))
	assert.Equal(t, id.FactoryID("F001"), FactoryID(ctx))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}

func TestClientMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8.0")
	ctx = WithClient(ctx, ClientInfo{Browser: "curl", Bot: false})
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "curl", Client(ctx).Browser)
}
