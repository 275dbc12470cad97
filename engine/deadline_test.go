package engine

import (
	"testing"
	"time"
)

func TestDeadlineZeroValueIsUnreachable(t *testing.T) {
	var d Deadline
	if d.IsReachable() {
		t.Fatal("zero deadline must be unreachable")
	}
	if d.Passed() {
		t.Fatal("unreachable deadline must never pass")
	}
}

func TestDeadlinePassed(t *testing.T) {
	d := DeadlinePassed()
	if !d.IsReachable() || !d.Passed() {
		t.Fatal("passed deadline must be reachable and passed")
	}
	if d.TimeLeft() != 0 {
		t.Fatal("passed deadline must have no time left")
	}
}

func TestDeadlineFromDuration(t *testing.T) {
	d := DeadlineFromDuration(time.Hour)
	if !d.IsReachable() || d.Passed() {
		t.Fatal("future deadline must be reachable and not passed")
	}
	if left := d.TimeLeft(); left <= 0 || left > time.Hour {
		t.Fatalf("unexpected time left: %v", left)
	}

	if !DeadlineFromDuration(-time.Second).Passed() {
		t.Fatal("negative duration must yield a passed deadline")
	}
	if !DeadlineFromDuration(0).Passed() {
		t.Fatal("zero duration must yield a passed deadline")
	}
}
