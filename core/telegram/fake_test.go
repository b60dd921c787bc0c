package telegram

import (
	"errors"
	"sync"

	tele "gopkg.in/telebot.v4"
)

type sentMessage struct {
	to   tele.Recipient
	what interface{}
	opts *tele.SendOptions
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sentMessage
	actions  []tele.ChatAction
	deleted  []tele.Editable
	answered int
	sendErr  error
}

func (f *fakeClient) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	var so *tele.SendOptions
	for _, o := range opts {
		if v, ok := o.(*tele.SendOptions); ok {
			so = v
		}
	}
	f.sent = append(f.sent, sentMessage{to: to, what: what, opts: so})
	return &tele.Message{ID: len(f.sent)}, nil
}

func (f *fakeClient) Notify(_ tele.Recipient, action tele.ChatAction, _ ...int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeClient) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, msg)
	return nil
}

func (f *fakeClient) Respond(*tele.Callback, ...*tele.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered++
	return nil
}

func (f *fakeClient) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if text, ok := s.what.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

type rawCall struct {
	method string
	params map[string]interface{}
}

type fakeRaw struct {
	mu     sync.Mutex
	calls  []rawCall
	answer []byte
	err    error
}

func (f *fakeRaw) Raw(method string, payload interface{}) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	params, _ := payload.(map[string]interface{})
	f.calls = append(f.calls, rawCall{method: method, params: params})
	if f.err != nil {
		return nil, f.err
	}
	if f.answer == nil {
		return []byte(`{"ok":true,"result":[]}`), nil
	}
	return f.answer, nil
}

var errBoom = errors.New("boom")

func textUpdate(id int, text string) *tele.Update {
	return &tele.Update{ID: id, Message: &tele.Message{
		ID:     id * 10,
		Text:   text,
		Chat:   &tele.Chat{ID: 100},
		Sender: &tele.User{ID: 7},
	}}
}
