package debounce

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestBurstCommitsLastValueOnce(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var commits []float64
	in := New(50.0, 50*time.Millisecond, clock, func(v float64) { commits = append(commits, v) })

	// slider dragged from 50 to 80 over 200ms
	for i := 1; i <= 20; i++ {
		in.OnChange(50 + float64(i)*1.5)
		clock.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, in.Raw(), 80.0)
	assert.Equal(t, in.Committed(), 50.0)
	assert.Equal(t, len(commits), 0)

	clock.Advance(40 * time.Millisecond)
	assert.Equal(t, commits, []float64{80})
	assert.Equal(t, in.Committed(), 80.0)
	assert.Equal(t, in.Pending(), false)

	clock.Advance(time.Second)
	assert.Equal(t, len(commits), 1)
}

func TestSeparatedChangesCommitEach(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var commits []string
	in := New("", 50*time.Millisecond, clock, func(v string) { commits = append(commits, v) })

	in.OnChange("r")
	clock.Advance(60 * time.Millisecond)
	in.OnChange("ro")
	clock.Advance(60 * time.Millisecond)

	assert.Equal(t, commits, []string{"r", "ro"})
}

func TestZeroWindowCommitsSynchronously(t *testing.T) {
	var commits []string
	in := New("", 0, NewFakeClock(time.Unix(0, 0)), func(v string) { commits = append(commits, v) })

	in.OnChange("a")
	in.OnChange("ab")
	assert.Equal(t, commits, []string{"a", "ab"})
	assert.Equal(t, in.Committed(), "ab")
}

func TestFlushCommitsPendingValue(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var commits []string
	in := New("", 50*time.Millisecond, clock, func(v string) { commits = append(commits, v) })

	in.OnChange("bo")
	in.Flush()
	assert.Equal(t, commits, []string{"bo"})
	assert.Equal(t, clock.Pending(), 0)

	in.Flush()
	clock.Advance(time.Second)
	assert.Equal(t, commits, []string{"bo"})
}

func TestDisposeCancelsPendingCommit(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	commits := 0
	in := New("", 50*time.Millisecond, clock, func(string) { commits++ })

	in.OnChange("x")
	in.Dispose()
	clock.Advance(time.Second)
	assert.Equal(t, commits, 0)

	in.OnChange("y")
	clock.Advance(time.Second)
	assert.Equal(t, commits, 0)
	assert.Equal(t, in.Raw(), "x")
}

func TestRealClockCommits(t *testing.T) {
	done := make(chan string, 1)
	in := New("", 5*time.Millisecond, nil, func(v string) { done <- v })

	in.OnChange("live")
	select {
	case v := <-done:
		assert.Equal(t, v, "live")
	case <-time.After(2 * time.Second):
		t.Fatal("commit never happened")
	}
}
