//go:build !integration

package unit

import (
	"math/rand"
	"testing"

	"github.com/behrlich/ttyline"
	"github.com/behrlich/ttyline/internal/constants"
	"github.com/behrlich/ttyline/internal/line"
	"github.com/behrlich/ttyline/internal/queue"
)

// These tests run without a server loop: structural invariants and
// interface compliance only.

func TestDeviceInterfaceCompliance(t *testing.T) {
	dev := ttyline.NewMockDevice()

	var _ ttyline.Device = dev
	var _ ttyline.MasterEndpoint = dev
	var _ line.DeviceBinder = dev
}

func TestConfigurationConstants(t *testing.T) {
	if constants.NCONS+constants.NSERIAL+constants.NPTY <= 0 {
		t.Fatal("the line table must have at least one line")
	}
	if constants.QueueSize&(constants.QueueSize-1) != 0 {
		t.Errorf("QueueSize = %d, want a power of two", constants.QueueSize)
	}
	if constants.TabSize&(constants.TabSize-1) != 0 {
		t.Errorf("TabSize = %d, want a power of two", constants.TabSize)
	}
	if constants.LogMinor >= constants.RS232MinorBase {
		t.Errorf("LogMinor %d collides with the serial minor range", constants.LogMinor)
	}
}

// TestRingInvariantsUnderRandomOps drives the input queue with a random
// mix of push/pop/pop-head/reset and checks the structural invariant
// after every step: 0 <= eot_count <= count <= capacity.
func TestRingInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var r queue.Ring

	check := func(step int) {
		t.Helper()
		if r.EOTCount() < 0 || r.EOTCount() > r.Count() {
			t.Fatalf("step %d: eot count %d outside [0, count=%d]", step, r.EOTCount(), r.Count())
		}
		if r.Count() > r.Capacity() {
			t.Fatalf("step %d: count %d exceeds capacity", step, r.Count())
		}
	}

	for step := 0; step < 100000; step++ {
		switch op := rng.Intn(10); {
		case op < 5:
			if !r.Full() {
				r.Push(queue.NewCell(byte(rng.Intn(256)), 1, rng.Intn(4) == 0, false, false))
			}
		case op < 8:
			if !r.Empty() {
				r.Pop()
			}
		case op < 9:
			if !r.Empty() {
				r.PopHead()
			}
		default:
			if rng.Intn(100) == 0 {
				r.Reset()
			}
		}
		check(step)
	}
}

func TestMarkAllEOTRestoresInvariant(t *testing.T) {
	var r queue.Ring
	for i := 0; i < 10; i++ {
		r.Push(queue.NewCell('x', 1, false, false, false))
	}
	r.MarkAllEOT()
	if r.EOTCount() != r.Count() {
		t.Fatalf("eot count %d != count %d after MarkAllEOT", r.EOTCount(), r.Count())
	}
}

func TestLineResetClearsEverything(t *testing.T) {
	l := line.NewLine(0, 0, line.KindConsole)
	env := &line.Env{}

	l.Open(3, false, true, false)
	l.InProcess(env, []byte("typeahead\n"))
	l.Reader = line.PendingOp{Active: true, Leftover: 4}

	if !l.Close() {
		t.Fatal("single close should fully close")
	}
	if l.Queue.Count() != 0 || l.Reader.Active || l.PGRP != 0 {
		t.Fatalf("close left state behind: count=%d reader=%v pgrp=%d",
			l.Queue.Count(), l.Reader.Active, l.PGRP)
	}
}

func TestPGRPImpliesOpen(t *testing.T) {
	l := line.NewLine(0, 0, line.KindConsole)

	l.Open(5, false, true, false)
	if l.PGRP != 0 && l.OpenCount == 0 {
		t.Fatal("pgrp set while closed")
	}
	l.Close()
	if l.PGRP != 0 {
		t.Fatal("pgrp must clear when open_count reaches zero")
	}
}
