package telegram

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTransportFetch(t *testing.T) {
	raw := &fakeRaw{answer: []byte(`{"ok":true,"result":[
		{"update_id":5,"message":{"message_id":1,"text":"/start","chat":{"id":100}}},
		{"update_id":6,"callback_query":{"id":"q","data":"\fecho|1"}}
	]}`)}
	tr := NewTransport(raw, 25*time.Second)

	updates, err := tr.Fetch(context.Background(), 5, 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(updates) != 2 || updates[0].ID != 5 || updates[0].Message.Text != "/start" {
		t.Fatalf("updates = %+v", updates)
	}
	if updates[1].Callback == nil || updates[1].Callback.Data != "\fecho|1" {
		t.Fatalf("callback = %+v", updates[1].Callback)
	}
	call := raw.calls[0]
	if call.method != "getUpdates" || call.params["offset"] != 5 || call.params["limit"] != 100 || call.params["timeout"] != 25 {
		t.Fatalf("call = %+v", call)
	}
}

func TestTransportAckNeverRoutes(t *testing.T) {
	raw := &fakeRaw{}
	tr := NewTransport(raw, time.Second)
	if err := tr.Ack(context.Background(), 8); err != nil {
		t.Fatalf("ack: %v", err)
	}
	call := raw.calls[0]
	if call.params["offset"] != 8 || call.params["limit"] != 1 || call.params["timeout"] != 0 {
		t.Fatalf("ack params = %+v", call.params)
	}
}

func TestTransportErrors(t *testing.T) {
	raw := &fakeRaw{err: errBoom}
	tr := NewTransport(raw, 0)
	if _, err := tr.Fetch(context.Background(), 0, 1); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", err)
	}

	raw = &fakeRaw{answer: []byte(`not json`)}
	if _, err := NewTransport(raw, 0).Fetch(context.Background(), 0, 1); err == nil {
		t.Fatalf("expected decode error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := &blockingRaw{release: make(chan struct{})}
	defer close(blocked.release)
	if _, err := NewTransport(blocked, 0).Fetch(ctx, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTransportAllowedUpdatesIsCopy(t *testing.T) {
	tr := NewTransport(&fakeRaw{}, 0)
	got := tr.AllowedUpdates()
	if len(got) != 2 || got[0] != "message" || got[1] != "callback_query" {
		t.Fatalf("allowed = %v", got)
	}
	got[0] = "poll"
	if tr.AllowedUpdates()[0] != "message" {
		t.Fatalf("AllowedUpdates leaked internal slice")
	}
}

type blockingRaw struct {
	release chan struct{}
}

func (b *blockingRaw) Raw(string, interface{}) ([]byte, error) {
	<-b.release
	return nil, nil
}
