package pipeline

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAction returns an action that counts invocations and spawns
// nothing.
func countingAction(n *int) Action {
	return func(*Inlet) (*exec.Cmd, error) {
		*n++
		return nil, nil
	}
}

func testRegistry(t *testing.T, cfg OriginConfig) (*Registry, *Origin) {
	t.Helper()
	reg := NewRegistry(OriginConfig{}, testLogger())
	o, err := reg.Add(t.TempDir(), "host::mirror", cfg)
	require.NoError(t, err)
	return reg, o
}

func TestScheduler_Tick_RunsExpiredDelay(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{Action: countingAction(&invoked)})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Enqueue(KindModify, now, "f", "")
	s.Tick(now)

	assert.Equal(t, 1, invoked)
	assert.Equal(t, 0, o.Queue().Len())
}

func TestScheduler_Tick_WaitsForDeadline(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{
		Action: countingAction(&invoked),
		Delay:  5 * time.Second,
	})
	s := NewScheduler(reg, testLogger(), nil)
	start := time.Unix(1000, 0)

	o.Enqueue(KindModify, start, "f", "")

	s.Tick(start.Add(4 * time.Second))
	assert.Equal(t, 0, invoked)

	s.Tick(start.Add(5 * time.Second))
	assert.Equal(t, 1, invoked)
}

func TestScheduler_Tick_DebouncedStormFiresOnce(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{
		Action: countingAction(&invoked),
		Delay:  5 * time.Second,
	})
	s := NewScheduler(reg, testLogger(), nil)
	start := time.Unix(0, 0)

	for i := range 3 {
		o.Enqueue(KindModify, start.Add(time.Duration(i)*time.Second), "a/x", "")
	}
	s.Tick(start.Add(5 * time.Second))

	assert.Equal(t, 1, invoked)
	assert.Equal(t, 0, o.Queue().Len())
}

func TestScheduler_Tick_SkipsSaturatedOrigin(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{Action: countingAction(&invoked), MaxProcesses: 1})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Processes().Insert(4242, &Delay{Kind: KindModify, Path: "busy"})
	o.Enqueue(KindModify, now, "f", "")

	s.Tick(now)
	assert.Equal(t, 0, invoked)

	// Child exits; the slot frees and the backlog drains.
	s.Collect(4242, 0)
	s.Tick(now)
	assert.Equal(t, 1, invoked)
}

func TestScheduler_Tick_NonSpawningActionsDrainBacklog(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{Action: countingAction(&invoked), MaxProcesses: 2})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Enqueue(KindModify, now, "a", "")
	o.Enqueue(KindModify, now, "b", "")
	o.Enqueue(KindModify, now, "c", "")

	s.Tick(now)

	// Actions that spawn nothing never occupy a slot, so the whole backlog
	// drains in one tick.
	assert.Equal(t, 3, invoked)
}

func TestScheduler_Tick_CapHoldsWithRealChildren(t *testing.T) {
	var spawned []*exec.Cmd
	reg, o := testRegistry(t, OriginConfig{
		MaxProcesses: 1,
		Action: func(*Inlet) (*exec.Cmd, error) {
			cmd := exec.Command("sleep", "30")
			if err := cmd.Start(); err != nil {
				return nil, err
			}
			return cmd, nil
		},
	})
	s := NewScheduler(reg, testLogger(), func(_ *Origin, cmd *exec.Cmd) {
		spawned = append(spawned, cmd)
	})
	t.Cleanup(func() {
		for _, cmd := range spawned {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	})
	now := time.Unix(1000, 0)

	o.Enqueue(KindModify, now, "a", "")
	o.Enqueue(KindModify, now, "b", "")
	s.Tick(now)

	require.Len(t, spawned, 1)
	assert.Equal(t, 1, o.Processes().Len())
	assert.Equal(t, 1, o.Queue().Len())

	s.Collect(spawned[0].Process.Pid, 0)
	s.Tick(now)

	require.Len(t, spawned, 2)
	assert.Equal(t, 1, o.Processes().Len())
	assert.Equal(t, 0, o.Queue().Len())
}

func TestScheduler_Tick_InletExposesEventView(t *testing.T) {
	var src, dst string
	var kind EventKind
	reg, o := testRegistry(t, OriginConfig{
		Action: func(in *Inlet) (*exec.Cmd, error) {
			src = in.SourcePath()
			dst = in.TargetPath()
			kind = in.Kind()
			return nil, nil
		},
	})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Enqueue(KindCreate, now, "sub/f", "")
	s.Tick(now)

	assert.Equal(t, o.Source+"sub/f", src)
	assert.Equal(t, "host::mirror/sub/f", dst)
	assert.Equal(t, KindCreate, kind)
}

func TestScheduler_EarliestAlarm(t *testing.T) {
	reg := NewRegistry(OriginConfig{}, testLogger())
	noop := func(*Inlet) (*exec.Cmd, error) { return nil, nil }

	fast, err := reg.Add(t.TempDir(), "a", OriginConfig{Action: noop, Delay: time.Second})
	require.NoError(t, err)
	slow, err := reg.Add(t.TempDir(), "b", OriginConfig{Action: noop, Delay: 10 * time.Second})
	require.NoError(t, err)

	s := NewScheduler(reg, testLogger(), nil)

	_, ok := s.EarliestAlarm()
	assert.False(t, ok, "empty queues give no alarm")

	now := time.Unix(1000, 0)
	slow.Enqueue(KindModify, now, "s", "")
	fast.Enqueue(KindModify, now, "f", "")

	alarm, ok := s.EarliestAlarm()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), alarm)
}

func TestScheduler_EarliestAlarm_IgnoresSaturatedOrigin(t *testing.T) {
	invoked := 0
	reg, o := testRegistry(t, OriginConfig{Action: countingAction(&invoked), Delay: time.Second})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Enqueue(KindModify, now, "f", "")
	o.Processes().Insert(77, &Delay{Kind: KindModify, Path: "busy"})

	_, ok := s.EarliestAlarm()
	assert.False(t, ok, "a saturated origin must not keep the host awake")
}

func TestScheduler_Collect_UnknownPidIsDropped(t *testing.T) {
	reg, _ := testRegistry(t, OriginConfig{Action: countingAction(new(int))})
	s := NewScheduler(reg, testLogger(), nil)

	assert.NotPanics(t, func() { s.Collect(99999, 1) })
}

func TestScheduler_ProcessCapInvariant(t *testing.T) {
	reg, o := testRegistry(t, OriginConfig{Action: countingAction(new(int)), MaxProcesses: 2})
	s := NewScheduler(reg, testLogger(), nil)
	now := time.Unix(1000, 0)

	o.Processes().Insert(1, &Delay{})
	o.Processes().Insert(2, &Delay{})
	o.Enqueue(KindModify, now, "f", "")
	s.Tick(now)

	assert.LessOrEqual(t, o.Processes().Len(), o.Config.MaxProcesses)
	assert.Equal(t, 1, o.Queue().Len())
}
