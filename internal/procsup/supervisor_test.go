//go:build unix

package procsup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncRecorder struct {
	ch chan recordedLine
}

func newSyncRecorder() *syncRecorder { return &syncRecorder{ch: make(chan recordedLine, 64)} }

func (r *syncRecorder) Receive(process, line string) {
	r.ch <- recordedLine{process, line}
}

func (r *syncRecorder) await(t *testing.T, timeout time.Duration) recordedLine {
	t.Helper()
	select {
	case l := <-r.ch:
		return l
	case <-time.After(timeout):
		t.Fatal("timed out waiting for line")
		return recordedLine{}
	}
}

func TestSupervisor_SpawnDeliversLinesAndRejectsDuplicateName(t *testing.T) {
	rec := newSyncRecorder()
	sup := NewSupervisor(nil, rec)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := sup.Spawn(ctx, "dut", "/bin/sh", []string{"-c", "echo hello; sleep 5"}, "")
	require.NoError(t, err)

	got := rec.await(t, 2*time.Second)
	assert.Equal(t, "dut", got.process)
	assert.Equal(t, "hello", got.line)

	_, err = sup.Spawn(ctx, "dut", "/bin/sh", []string{"-c", "true"}, "")
	assert.Error(t, err)

	sup.KillAll()
}

func TestSupervisor_SendLineRoundTrip(t *testing.T) {
	rec := newSyncRecorder()
	sup := NewSupervisor(nil, rec)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := sup.Spawn(ctx, "echoer", "/bin/sh", []string{"-c", "read line; echo \"got: $line\""}, "")
	require.NoError(t, err)

	require.NoError(t, proc.SendLine("ping"))

	got := rec.await(t, 2*time.Second)
	assert.Equal(t, "got: ping", got.line)

	sup.KillAll()
}

func TestSupervisor_KillAllIgnoresAlreadyExited(t *testing.T) {
	sup := NewSupervisor(nil, newSyncRecorder())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := sup.Spawn(ctx, "quick", "/bin/sh", []string{"-c", "true"}, "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	assert.NotPanics(t, func() { sup.KillAll() })
}
