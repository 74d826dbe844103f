package port

import (
	"context"
	"testing"
	"time"
)

func TestSubmitRequestRoundTrip(t *testing.T) {
	p := New()
	ctx := context.Background()

	go func() {
		msg := <-p.Messages()
		if msg.Kind != KindRequest {
			t.Errorf("Kind = %v, want KindRequest", msg.Kind)
			return
		}
		if msg.Request.Op != OpRead {
			t.Errorf("Op = %v, want OpRead", msg.Request.Op)
		}
		msg.Request.Reply <- Reply{Code: ReplyOK, N: 3}
	}()

	reply, err := SubmitRequest(ctx, p, &Request{Op: OpRead, Minor: 1, Buf: make([]byte, 3)})
	if err != nil {
		t.Fatalf("SubmitRequest error: %v", err)
	}
	if reply.Code != ReplyOK || reply.N != 3 {
		t.Fatalf("reply = %+v, want Code=ReplyOK N=3", reply)
	}
}

func TestSubmitRequestContextCanceled(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < cap(p.ch); i++ {
		p.ch <- Message{Kind: KindAlarm}
	}

	_, err := SubmitRequest(ctx, p, &Request{Op: OpStatus})
	if err == nil {
		t.Fatal("expected an error from a canceled context against a full port")
	}
}

func TestTrySendNeverBlocksOnFullPort(t *testing.T) {
	p := New()
	for i := 0; i < cap(p.ch); i++ {
		if !p.TrySend(Message{Kind: KindInterrupt, Interrupts: 1}) {
			t.Fatalf("TrySend failed before the port was full, at %d", i)
		}
	}
	if p.TrySend(Message{Kind: KindInterrupt, Interrupts: 1}) {
		t.Fatal("TrySend succeeded on a full port")
	}
}

func TestCloseRejectsFurtherSends(t *testing.T) {
	p := New()
	p.Close()
	if err := p.Send(context.Background(), Message{Kind: KindAlarm}); err != ErrClosed {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestSendBlocksUntilDrained(t *testing.T) {
	p := New()
	for i := 0; i < cap(p.ch); i++ {
		p.ch <- Message{Kind: KindAlarm}
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Send(context.Background(), Message{Kind: KindSignal})
	}()

	select {
	case <-done:
		t.Fatal("Send returned before the port had room")
	case <-time.After(20 * time.Millisecond):
	}

	<-p.Messages()
	if err := <-done; err != nil {
		t.Fatalf("Send error: %v", err)
	}
}
