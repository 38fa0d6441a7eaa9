package state

import (
	"sync"
	"testing"
	"time"
)

func TestCompletion_InitialState(t *testing.T) {
	c := NewCompletion()

	if c.IsDone() {
		t.Error("new completion should not be done")
	}
	if c.FinalCount() != SentinelCount {
		t.Errorf("expected sentinel count, got %d", c.FinalCount())
	}
	select {
	case <-c.Done():
		t.Error("Done channel should be open before publish")
	default:
	}
}

func TestCompletion_Publish(t *testing.T) {
	c := NewCompletion()

	if err := c.Publish(6); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !c.IsDone() {
		t.Error("expected done after publish")
	}
	if c.FinalCount() != 6 {
		t.Errorf("expected count 6, got %d", c.FinalCount())
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done channel should be closed after publish")
	}
}

func TestCompletion_ZeroValue(t *testing.T) {
	var c Completion

	if c.IsDone() {
		t.Error("zero value should not be done")
	}
	if c.FinalCount() != SentinelCount {
		t.Errorf("expected sentinel count before publish, got %d", c.FinalCount())
	}

	done := c.Done()
	select {
	case <-done:
		t.Error("Done channel should be open before publish")
	default:
	}

	if err := c.Publish(3); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done channel obtained before publish was never closed")
	}
	if c.FinalCount() != 3 {
		t.Errorf("expected count 3, got %d", c.FinalCount())
	}
	if err := c.Publish(4); err != ErrAlreadyPublished {
		t.Errorf("expected ErrAlreadyPublished, got %v", err)
	}
}

func TestCompletion_ZeroValuePublishWithoutDone(t *testing.T) {
	c := &Completion{}

	if err := c.Publish(0); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done channel should be closed after publish")
	}
}

func TestCompletion_PublishIsOneShot(t *testing.T) {
	c := NewCompletion()
	c.Publish(3)

	if err := c.Publish(9); err != ErrAlreadyPublished {
		t.Errorf("expected ErrAlreadyPublished, got %v", err)
	}
	if c.FinalCount() != 3 {
		t.Errorf("count changed after second publish: %d", c.FinalCount())
	}
}

func TestCompletion_NegativeCountClampsToZero(t *testing.T) {
	c := NewCompletion()
	c.Publish(-1)
	if c.FinalCount() != 0 {
		t.Errorf("expected 0, got %d", c.FinalCount())
	}
}

func TestCompletion_ConcurrentPublishOnlyOneWins(t *testing.T) {
	c := NewCompletion()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			if c.Publish(n) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning publish, got %d", wins)
	}
}

// A reader that sees the flag must never see the sentinel.
func TestCompletion_FlagImpliesCount(t *testing.T) {
	for round := 0; round < 200; round++ {
		c := NewCompletion()
		stop := make(chan struct{})
		violations := make(chan int64, 1)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if c.IsDone() {
					if n := c.FinalCount(); n == SentinelCount {
						violations <- n
					}
					return
				}
			}
		}()

		c.Publish(int64(round))
		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatal("Done never closed")
		}
		close(stop)
		wg.Wait()

		select {
		case n := <-violations:
			t.Fatalf("round %d: flag observed with count %d", round, n)
		default:
		}
	}
}
