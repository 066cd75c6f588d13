package room

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type staticStore struct{ content string }

func (s staticStore) LoadContent(ctx context.Context, id string) (string, error) {
	return s.content, nil
}

func (s staticStore) SaveContent(ctx context.Context, id, content string) error {
	return nil
}

func TestBeginRejectsConcurrentOperations(t *testing.T) {
	rm := NewRoomManager(staticStore{})
	defer rm.Shutdown()
	r := rm.GetOrCreateRoom("doc-1")

	release, err := r.Begin(Applying)
	if err != nil {
		t.Fatalf("Begin(Applying) error = %v", err)
	}
	if r.State() != Applying {
		t.Errorf("State() = %s, want applying", r.State())
	}

	for _, op := range []State{Applying, Reverting} {
		_, err := r.Begin(op)
		var busy *BusyError
		if !errors.As(err, &busy) {
			t.Fatalf("Begin(%s) error = %v, want *BusyError", op, err)
		}
		if !errors.Is(err, ErrOperationInFlight) || busy.Current != Applying {
			t.Errorf("unexpected busy error: %+v", busy)
		}
	}

	release()
	release()
	if r.State() != Idle {
		t.Fatalf("State() = %s after release, want idle", r.State())
	}

	release2, err := r.Begin(Reverting)
	if err != nil {
		t.Fatalf("Begin(Reverting) after release error = %v", err)
	}
	release2()
}

func TestRoomsAreIndependent(t *testing.T) {
	rm := NewRoomManager(staticStore{})
	defer rm.Shutdown()

	release, err := rm.GetOrCreateRoom("a").Begin(Applying)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if rm.GetOrCreateRoom("a") != rm.GetOrCreateRoom("a") {
		t.Error("GetOrCreateRoom must return the same room for a document")
	}
	other, err := rm.GetOrCreateRoom("b").Begin(Applying)
	if err != nil {
		t.Fatalf("busy state leaked across documents: %v", err)
	}
	other()
}

func TestBeginIdleIsInvalid(t *testing.T) {
	rm := NewRoomManager(staticStore{})
	defer rm.Shutdown()
	if _, err := rm.GetOrCreateRoom("a").Begin(Idle); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubscribersReceiveUpdates(t *testing.T) {
	rm := NewRoomManager(staticStore{content: "one"})
	defer rm.Shutdown()
	r := rm.GetOrCreateRoom("doc-1")

	client := &Client{ID: "c1", Username: "ada", Room: r, Send: make(chan []byte, 16)}
	if !r.Join(client) {
		t.Fatal("Join() = false")
	}

	next := func() map[string]interface{} {
		t.Helper()
		select {
		case data := <-client.Send:
			var msg map[string]interface{}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("bad message %s: %v", data, err)
			}
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
			return nil
		}
	}

	if msg := next(); msg["type"] != "snapshot" || msg["content"] != "one" {
		t.Fatalf("first message = %v, want snapshot", msg)
	}
	if msg := next(); msg["type"] != "user_joined" {
		t.Fatalf("second message = %v, want user_joined", msg)
	}

	r.NotifyUpdate(EventUpdateApplied, "rec-1", "add line", "one", "one\ntwo")
	msg := next()
	if msg["type"] != EventUpdateApplied || msg["content"] != "one\ntwo" || msg["record_id"] != "rec-1" {
		t.Fatalf("update message = %v", msg)
	}
	patch, ok := msg["patch"].([]interface{})
	if !ok || len(patch) == 0 {
		t.Fatalf("expected a non-empty patch, got %v", msg["patch"])
	}
}

func TestLineDiff(t *testing.T) {
	patch, err := LineDiff("a\nb", "a\nb")
	if err != nil {
		t.Fatal(err)
	}
	if len(patch) != 0 {
		t.Errorf("identical content produced patch %v", patch)
	}

	patch, err = LineDiff("a\nb", "a\nc")
	if err != nil {
		t.Fatal(err)
	}
	if len(patch) != 1 || patch[0].Path != "/lines/1" {
		t.Errorf("unexpected patch %v", patch)
	}
}

func TestJoinAfterShutdown(t *testing.T) {
	rm := NewRoomManager(staticStore{content: "one"})
	r := rm.GetOrCreateRoom("doc-1")

	client := &Client{ID: "c1", Room: r, Send: make(chan []byte, 16)}
	if !r.Join(client) {
		t.Fatal("Join() on a live room = false")
	}

	rm.Shutdown()

	joined := make(chan bool, 1)
	go func() {
		joined <- r.Join(&Client{ID: "c2", Room: r, Send: make(chan []byte, 16)})
	}()
	select {
	case ok := <-joined:
		if ok {
			t.Error("Join() on a closed room = true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Join() blocked on a closed room")
	}
}
