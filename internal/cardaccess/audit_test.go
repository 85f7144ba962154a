package cardaccess

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dumpsterpool-backend/internal/repo/repotest"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

func TestAuditRepositoryAppendsInOrder(t *testing.T) {
	client := repotest.Open(t)
	audit := NewAuditRepository(client.DB())
	ctx := context.Background()
	groupID := uuid.New()
	actor := uuid.New()

	for _, event := range []enums.CardAccessEvent{enums.CardAccessVerifyFailed, enums.CardAccessLockedOut} {
		require.NoError(t, audit.Append(ctx, &models.CardAccessAuditEvent{
			GroupID:        groupID,
			ActorUserID:    actor,
			Event:          event,
			FailedAttempts: 3,
		}))
	}
	require.NoError(t, audit.Append(ctx, &models.CardAccessAuditEvent{GroupID: uuid.New(), ActorUserID: actor, Event: enums.CardAccessReset}))

	rows, err := audit.List(ctx, groupID.String())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotEqual(t, uuid.Nil, rows[0].ID)
}
