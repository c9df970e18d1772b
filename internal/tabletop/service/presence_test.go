package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeToucher struct {
	touched []string
	err     error
}

func (f *fakeToucher) TouchRoom(_ context.Context, code string) error {
	f.touched = append(f.touched, code)
	return f.err
}

func drain(sub *Subscriber) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHub_JoinBroadcastsUsers(t *testing.T) {
	toucher := &fakeToucher{}
	h := NewHub(toucher)
	ctx := context.Background()

	gm, err := h.Join(ctx, "room0001", "admin", "")
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := h.Join(ctx, "ROOM0001", "player", "Aria")
	p2, _ := h.Join(ctx, "ROOM0001", "spectator", "")

	if !reflect.DeepEqual(toucher.touched, []string{"ROOM0001", "ROOM0001", "ROOM0001"}) {
		t.Errorf("touched %v", toucher.touched)
	}
	if gm.Name != "Admin" || p2.Type != UserTypePlayer || p2.Name != "Player" {
		t.Errorf("defaults: %+v %+v", gm, p2)
	}

	want := UserList{Admins: []string{"Admin"}, Players: []string{"Aria", "Player"}, Total: 3}
	if got := h.Users("room0001"); !reflect.DeepEqual(got, want) {
		t.Errorf("Users = %+v, want %+v", got, want)
	}

	events := drain(gm)
	if len(events) != 3 {
		t.Fatalf("admin got %d events, want 3", len(events))
	}
	last := events[2]
	if last.Name != EventUsersUpdated || !reflect.DeepEqual(last.Data, want) {
		t.Errorf("last event %+v", last)
	}
	if n := len(drain(p1)); n != 2 {
		t.Errorf("player got %d events, want 2", n)
	}
}

func TestHub_JoinUnknownRoom(t *testing.T) {
	h := NewHub(&fakeToucher{err: ErrNotFound})
	if _, err := h.Join(context.Background(), "NOPE0000", "player", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err %v", err)
	}
	if h.Users("NOPE0000").Total != 0 {
		t.Error("failed join registered a user")
	}
}

func TestHub_LeaveClosesAndForgetsRoom(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()
	a, _ := h.Join(ctx, "ROOM0001", "admin", "GM")
	b, _ := h.Join(ctx, "ROOM0001", "player", "P")
	drain(a)

	h.Leave(b)
	drain(b)
	if _, open := <-b.Events(); open {
		t.Error("channel open after Leave")
	}
	events := drain(a)
	if len(events) != 1 || events[0].Data.(UserList).Total != 1 {
		t.Errorf("remaining admin got %+v", events)
	}

	h.Leave(b)
	h.Leave(a)
	if len(h.rooms) != 0 {
		t.Errorf("empty room kept: %v", h.rooms)
	}
}

func TestHub_NotifyMapChangedSkipsSender(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()
	gm, _ := h.Join(ctx, "ROOM0001", "admin", "")
	p, _ := h.Join(ctx, "ROOM0001", "player", "")
	other, _ := h.Join(ctx, "ROOM0002", "player", "")
	drain(gm)
	drain(p)
	drain(other)

	h.NotifyMapChanged("room0001", gm.ID)

	if ev := drain(gm); len(ev) != 0 {
		t.Errorf("sender got %v", ev)
	}
	if ev := drain(p); len(ev) != 1 || ev[0].Name != EventMapChanged {
		t.Errorf("player got %v", ev)
	}
	if ev := drain(other); len(ev) != 0 {
		t.Errorf("other room got %v", ev)
	}
}

func TestHub_DropsEventsForLaggingSubscriber(t *testing.T) {
	h := NewHub(nil)
	sub, _ := h.Join(context.Background(), "ROOM0001", "player", "")
	for i := 0; i < h.buffer*3; i++ {
		h.NotifyMapChanged("ROOM0001", "")
	}
	if n := len(drain(sub)); n != h.buffer {
		t.Errorf("received %d events, want buffer size %d", n, h.buffer)
	}
}

func TestHub_OnRemoteChange(t *testing.T) {
	h := NewHub(nil)
	calls := 0
	cancel := h.OnRemoteChange("room0001", func() { calls++ })

	h.NotifyMapChanged("ROOM0001", "")
	h.NotifyMapChanged("ROOM0002", "")
	if calls != 1 {
		t.Errorf("calls %d, want 1", calls)
	}

	cancel()
	cancel()
	h.NotifyMapChanged("ROOM0001", "")
	if calls != 1 {
		t.Errorf("called after cancel: %d", calls)
	}
}

func TestHub_CloseRoom(t *testing.T) {
	h := NewHub(nil)
	sub, _ := h.Join(context.Background(), "ROOM0001", "player", "")
	h.CloseRoom("ROOM0001")
	drain(sub)
	if _, open := <-sub.Events(); open {
		t.Error("channel open after CloseRoom")
	}
	h.Leave(sub)
}
