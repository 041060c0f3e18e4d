package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstate/internal/definition"
	"github.com/roach88/procstate/internal/store"
	"github.com/roach88/procstate/internal/tasks"
	"github.com/roach88/procstate/internal/testutil"
	"github.com/roach88/procstate/internal/workflow"
)

var orderDef = filepath.Join("testdata", "order.yaml")

func setupTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts = append([]EngineOption{WithIDGenerator(testutil.NewSequentialIDs("order"))}, opts...)
	e, err := New(context.Background(), s, opts...)
	require.NoError(t, err)
	return e, s
}

func names(infos []TaskInfo) []string {
	out := []string{}
	for _, i := range infos {
		out = append(out, i.Name)
	}
	return out
}

func TestEngine_OrderLifecycle(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	st, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)
	assert.Equal(t, "order-0001", st.ID)
	assert.Equal(t, "Flow_Start_Review:R", st.State)
	require.Len(t, st.Ready, 1)
	assert.Equal(t, TaskInfo{
		Name:     "Review",
		Branch:   "Flow_Start_Review:R",
		Workflow: "Order",
		Manual:   true,
		Choices:  []string{"No", "Yes"},
	}, st.Ready[0])

	st, err = e.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, "Flow_Ship_Paid:W", st.State)
	assert.Equal(t, []string{"Paid"}, names(st.Waiting))

	st, n, err := e.Deliver(ctx, st.ID, workflow.Message{Name: "paid", Payload: map[string]any{"amount": 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Flow_Paid_Archive:R", st.State)

	w, err := e.Workflow(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, w.ReadOnly())
	archive, err := w.FindReady("Archive")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"choice":  "Yes",
		"shipped": true,
		"amount":  int64(10),
	}, archive.Attributes(), "attributes survive save and restore")

	st, err = e.Complete(ctx, st.ID, "Archive", nil)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.Equal(t, workflow.CompleteState, st.State)
	assert.Empty(t, st.Ready)

	history, err := e.History(ctx, st.ID)
	require.NoError(t, err)
	var ops []string
	var last int64
	for _, snap := range history {
		ops = append(ops, snap.Operation)
		assert.Greater(t, snap.Seq, last)
		last = snap.Seq
	}
	assert.Equal(t, []string{"start", "complete Review", "message paid", "complete Archive"}, ops)

	active, err := e.Instances(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := e.Instances(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEngine_Status(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	started, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)

	st, err := e.Status(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, started, st, "status restores exactly what was saved")
}

func TestEngine_ConcurrentReadsAndWrites(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := e.Start(ctx, orderDef, "Order")
			if !assert.NoError(t, err) {
				return
			}
			_, err = e.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "No"})
			assert.NoError(t, err)
			history, err := e.History(ctx, st.ID)
			assert.NoError(t, err)
			assert.Len(t, history, 2)
			_, err = e.Instances(ctx, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := e.Instances(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, workers)
	active, err := e.Instances(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEngine_RejectPath(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	st, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)
	st, err = e.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "No"})
	require.NoError(t, err)
	assert.True(t, st.Completed)
}

func TestEngine_Errors(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, orderDef, "Nope")
	assert.True(t, IsUnknownProcess(err))

	_, err = e.Start(ctx, filepath.Join("testdata", "missing.yaml"), "Order")
	assert.Error(t, err)

	_, err = e.Status(ctx, "ghost")
	assert.True(t, IsUnknownInstance(err))
	_, err = e.History(ctx, "ghost")
	assert.True(t, IsUnknownInstance(err))

	st, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)
	_, err = e.Complete(ctx, st.ID, "Archive", nil)
	assert.True(t, workflow.IsCode(err, workflow.ErrCodeNotReady))

	_, n, err := e.Deliver(ctx, st.ID, workflow.Message{Name: "paid"})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing waits for the message yet")
}

func TestEngine_Quota(t *testing.T) {
	e, s := setupTestEngine(t, WithMaxSteps(20))
	ctx := context.Background()

	_, err := e.Start(ctx, orderDef, "Spin")
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))

	all, err := s.ListInstances(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all, "failed start leaves nothing behind")
}

func TestEngine_ClockResumesFromStore(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	st, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)

	resumed, err := New(ctx, s, WithIDGenerator(testutil.NewSequentialIDs("again")))
	require.NoError(t, err)
	next, err := resumed.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "Yes"})
	require.NoError(t, err)
	assert.Greater(t, next.Seq, st.Seq)
}

func TestEngine_SharedStoreKeepsHistoryOrdered(t *testing.T) {
	first, s := setupTestEngine(t)
	ctx := context.Background()
	second, err := New(ctx, s, WithIDGenerator(testutil.NewSequentialIDs("second")))
	require.NoError(t, err)

	// second writes many snapshots; first's clock knows nothing of them.
	st, err := second.Start(ctx, orderDef, "Order")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := second.Start(ctx, orderDef, "Order")
		require.NoError(t, err)
	}

	next, err := first.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "Yes"})
	require.NoError(t, err)
	assert.Greater(t, next.Seq, st.Seq)

	history, err := first.History(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "complete Review", history[1].Operation)
}

func TestEngine_DefinitionChanged(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	st, err := e.Start(ctx, orderDef, "Order")
	require.NoError(t, err)
	st, err = e.Complete(ctx, st.ID, "Review", map[string]any{tasks.ChoiceAttribute: "Yes"})
	require.NoError(t, err)
	require.Equal(t, "Flow_Ship_Paid:W", st.State)

	// The new revision renamed the flow into Paid.
	changed := func(path string) (*definition.Registry, error) {
		doc, err := definition.Decode(path, []byte(`
processes:
  - name: Order
    start: Start
    tasks:
      - {name: Start, kind: start}
      - {name: Paid, kind: message, message: paid}
    flows:
      - {id: Flow_Renamed, from: Start, to: Paid}
`))
		if err != nil {
			return nil, err
		}
		return definition.Build(doc)
	}
	e2, err := New(ctx, s, WithDefinitionLoader(changed))
	require.NoError(t, err)

	_, err = e2.Status(ctx, st.ID)
	require.Error(t, err)
	assert.True(t, IsDefinitionChanged(err))
}
