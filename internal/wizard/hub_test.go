package wizard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
	"github.com/slabworks/visualizer/internal/wizard"
)

func TestHub_DeleteFreesSessionImmediately(t *testing.T) {
	hub := wizard.NewHub(newScriptedRun().run)
	id, sess := hub.Create()
	require.NoError(t, sess.SelectKitchen("kitchen-a"))

	hub.Delete(id)
	_, ok := hub.Get(id)
	assert.False(t, ok, "deleted session is gone without waiting for the reaper")

	// unknown id is a no-op
	hub.Delete(uuid.New())
}

func TestHub_PurgeReapsIdleOnly(t *testing.T) {
	hub := wizard.NewHub(newScriptedRun().run)
	idleID, _ := hub.Create()
	time.Sleep(100 * time.Millisecond)
	freshID, fresh := hub.Create()
	require.NoError(t, fresh.SelectKitchen("kitchen-a"))

	n := hub.Purge(50 * time.Millisecond)
	assert.Equal(t, 1, n)
	_, ok := hub.Get(idleID)
	assert.False(t, ok)
	_, ok = hub.Get(freshID)
	assert.True(t, ok)
}
