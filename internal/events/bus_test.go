package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

func TestBus_SendReceiveOrder(t *testing.T) {
	bus := NewBus(8)
	ctx := context.Background()
	id := process.Builtin(process.KindServe)

	for i := range 3 {
		if err := bus.Send(ctx, ProcessOutput{ID: id, Line: string(rune('a' + i))}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	for i := range 3 {
		ev := (<-bus.Events()).(ProcessOutput)
		if want := string(rune('a' + i)); ev.Line != want {
			t.Errorf("event %d line = %q, want %q", i, ev.Line, want)
		}
	}
	if sent, dropped := bus.Stats(); sent != 3 || dropped != 0 {
		t.Errorf("Stats() = %d, %d", sent, dropped)
	}
}

func TestBus_SendAfterCancel(t *testing.T) {
	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Send(ctx, Tick{}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Send() error = %v, want ErrBusClosed", err)
	}
	if bus.Len() != 0 {
		t.Error("cancelled send was queued")
	}
}

func TestBus_FullBufferBlocksUntilCancel(t *testing.T) {
	bus := NewBus(1)
	if err := bus.Send(context.Background(), Tick{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := bus.Send(ctx, Tick{})
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("Send() on full bus = %v, want ErrBusClosed", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("Send() on full bus returned before the context expired")
	}
}

func TestBus_ConcurrentProducers(t *testing.T) {
	bus := NewBus(DefaultBufferSize)
	ctx := context.Background()

	const producers, perProducer = 8, 100
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				_ = bus.Send(ctx, Tick{})
			}
		}()
	}

	got := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for got < producers*perProducer {
		select {
		case <-bus.Events():
			got++
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d events", got)
		}
	}
	<-done
}

func TestEvent_Kind(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Tick{}, "tick"},
		{ProcessExited{}, "process_exited"},
		{RestartRequest{}, "restart"},
		{RunCommandRequest{}, "run_command"},
	}
	for _, tt := range tests {
		if got := tt.ev.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}
