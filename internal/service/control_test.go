package service

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinzhub-stats-api/internal/model"
)

func TestControlState(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(time.Unix(700, 0))
	svc := NewControlService(clock)

	_, ok := svc.State("k")
	assert.False(t, ok)

	svc.SetState("k", json.RawMessage(`{"farming":true}`))
	st, ok := svc.State("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"farming":true}`, string(st.State))
	assert.Equal(t, int64(700), st.UpdatedAt)

	svc.SetState("k", json.RawMessage(`{"farming":false}`))
	st, _ = svc.State("k")
	assert.JSONEq(t, `{"farming":false}`, string(st.State))

	_, ok = svc.State("other")
	assert.False(t, ok)
}

func TestControlCommands_DrainOnce(t *testing.T) {
	svc := NewControlService(quartz.NewMock(t))

	assert.Equal(t, []model.Command{}, svc.DrainCommands("k"))

	a := svc.PushCommand("k", json.RawMessage(`{"do":"a"}`))
	b := svc.PushCommand("k", json.RawMessage(`{"do":"b"}`))
	assert.NotEqual(t, a.ID, b.ID)

	cmds := svc.DrainCommands("k")
	require.Len(t, cmds, 2)
	assert.Equal(t, a.ID, cmds[0].ID)
	assert.Equal(t, b.ID, cmds[1].ID)

	assert.Empty(t, svc.DrainCommands("k"))
}

func TestControlCommands_KeepsNewest(t *testing.T) {
	svc := NewControlService(quartz.NewMock(t))

	for i := range MaxQueuedCommands + 5 {
		svc.PushCommand("k", json.RawMessage(strconv.Itoa(i)))
	}

	cmds := svc.DrainCommands("k")
	require.Len(t, cmds, MaxQueuedCommands)
	assert.Equal(t, "5", string(cmds[0].Payload))
	assert.Equal(t, strconv.Itoa(MaxQueuedCommands+4), string(cmds[len(cmds)-1].Payload))
}

func TestControlCommands_Concurrent(t *testing.T) {
	svc := NewControlService(quartz.NewMock(t))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				svc.PushCommand("k", json.RawMessage(`1`))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, svc.DrainCommands("k"), 50)
	assert.Equal(t, 1, svc.Mailboxes())
}
