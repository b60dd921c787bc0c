package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m3rciful/cmdbus/core/telegram"
	"github.com/m3rciful/cmdbus/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type nopClient struct{}

func (nopClient) Send(tele.Recipient, interface{}, ...interface{}) (*tele.Message, error) {
	return &tele.Message{}, nil
}
func (nopClient) Notify(tele.Recipient, tele.ChatAction, ...int) error    { return nil }
func (nopClient) Delete(tele.Editable) error                              { return nil }
func (nopClient) Respond(*tele.Callback, ...*tele.CallbackResponse) error { return nil }

type call struct {
	command string
	args    commands.Bound
}

type calls struct {
	mu   sync.Mutex
	list []call
}

func (c *calls) add(name string, args commands.Bound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, call{command: name, args: args})
}

func (c *calls) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.list))
	for i, cl := range c.list {
		out[i] = cl.command
	}
	return out
}

func recording(rec *calls, base commands.Base, err error) commands.Command {
	name := base.Name()
	return commands.New(base, func(_ *commands.Context, args commands.Bound) error {
		rec.add(name, args)
		return err
	})
}

func newRouter(t *testing.T, opts Options, cmds ...commands.Command) *Router {
	t.Helper()
	bus := telegram.NewBus(nil, nopClient{}, telegram.BusOptions{})
	if err := bus.Register(cmds...); err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(bus, opts)
}

func textMessage(id int, text string) *tele.Update {
	return &tele.Update{ID: id, Message: &tele.Message{
		Text:   text,
		Chat:   &tele.Chat{ID: 100},
		Sender: &tele.User{ID: 7},
	}}
}

func commandMessage(id int, text string) *tele.Update {
	upd := textMessage(id, text)
	upd.Message.Entities = tele.Entities{{Type: tele.EntityCommand, Offset: 0, Length: len(text)}}
	return upd
}

func replyMessage(id int, text, repliedTo string) *tele.Update {
	upd := textMessage(id, text)
	upd.Message.ReplyTo = &tele.Message{Text: repliedTo}
	return upd
}

func TestClassify(t *testing.T) {
	mention := textMessage(1, "hey /start")
	mention.Message.Entities = tele.Entities{{Type: tele.EntityCommand, Offset: 4, Length: 6}}
	explicitReply := commandMessage(2, "/start")
	explicitReply.Message.ReplyTo = &tele.Message{Text: "Name?"}

	cases := []struct {
		name string
		upd  *tele.Update
		want Kind
	}{
		{"nil", nil, KindIgnored},
		{"no message", &tele.Update{ID: 1}, KindIgnored},
		{"callback", &tele.Update{Callback: &tele.Callback{Data: "x"}, Message: &tele.Message{}}, KindCallback},
		{"explicit", commandMessage(1, "/start"), KindExplicit},
		{"explicit beats reply", explicitReply, KindExplicit},
		{"command not leading", mention, KindPlain},
		{"reply", replyMessage(1, "Bob", "Name?"), KindReply},
		{"plain", textMessage(1, "hi"), KindPlain},
	}
	for _, tc := range cases {
		if got := Classify(tc.upd); got != tc.want {
			t.Fatalf("%s: Classify = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestExplicitPrecedence(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("start", ""), nil),
		recording(rec, commands.NewBase("name", "").WithReplyTrigger("Name?"), nil),
	)
	upd := commandMessage(1, "/start")
	upd.Message.ReplyTo = &tele.Message{Text: "Name?"}

	if err := r.Route(context.Background(), upd); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got := rec.names(); len(got) != 1 || got[0] != "start" {
		t.Fatalf("invoked = %v", got)
	}
}

func TestReplyContinuationFanOut(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("first", "").WithReplyTrigger("  What is your name? ").WithParams(commands.Arg("name")), nil),
		recording(rec, commands.NewBase("second", "").WithReplyTrigger("What is your name?"), nil),
		recording(rec, commands.NewBase("other", "").WithReplyTrigger("Age?"), nil),
	)
	if err := r.Route(context.Background(), replyMessage(1, "Bob", " What is your name?\n")); err != nil {
		t.Fatalf("route: %v", err)
	}
	got := rec.names()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("invoked = %v", got)
	}
	if rec.list[0].args.String("name") != "Bob" {
		t.Fatalf("first bound = %+v", rec.list[0].args.Values())
	}
	if raw := rec.list[1].args.Raw(); len(raw.Positional) != 1 || raw.Positional[0] != "Bob" {
		t.Fatalf("second raw = %+v", raw)
	}
}

func TestPlainAliasFanOut(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("greet", "").WithAliases("hi"), nil),
		recording(rec, commands.NewBase("wave", "").WithAliases("hello", "hi"), nil),
	)
	if err := r.Route(context.Background(), textMessage(1, " hi ")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got := rec.names(); len(got) != 2 {
		t.Fatalf("invoked = %v", got)
	}
	if err := r.Route(context.Background(), textMessage(2, "nothing")); err != nil {
		t.Fatalf("unmatched text should be a no-op, got %v", err)
	}
	if got := rec.names(); len(got) != 2 {
		t.Fatalf("unmatched text invoked %v", got)
	}
}

func TestFirstMatchOnly(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{FirstMatchOnly: true},
		recording(rec, commands.NewBase("greet", "").WithAliases("hi"), nil),
		recording(rec, commands.NewBase("wave", "").WithAliases("hi"), nil),
	)
	if err := r.Route(context.Background(), textMessage(1, "hi")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got := rec.names(); len(got) != 1 || got[0] != "greet" {
		t.Fatalf("invoked = %v", got)
	}
}

func TestFailingCommandDoesNotStopFanOut(t *testing.T) {
	rec := &calls{}
	boom := errors.New("boom")
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("bad", "").WithAliases("go"), boom),
		recording(rec, commands.NewBase("good", "").WithAliases("go"), nil),
	)
	err := r.Route(context.Background(), textMessage(1, "go"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom, got %v", err)
	}
	if got := rec.names(); len(got) != 2 {
		t.Fatalf("invoked = %v", got)
	}
}

func TestCallbackAndExplicitArgs(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("echo", "").WithParams(commands.Arg("a"), commands.Optional("b", "none")), nil),
	)
	cb := &tele.Update{ID: 1, Callback: &tele.Callback{
		Data:    "\fecho|x",
		Sender:  &tele.User{ID: 7},
		Message: &tele.Message{Chat: &tele.Chat{ID: 100}},
	}}
	if err := r.Route(context.Background(), cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if err := r.Route(context.Background(), commandMessage(2, "/echo one b=two")); err != nil {
		t.Fatalf("explicit: %v", err)
	}
	if a, b := rec.list[0].args.String("a"), rec.list[0].args.String("b"); a != "x" || b != "none" {
		t.Fatalf("callback bound a=%q b=%q", a, b)
	}
	if a, b := rec.list[1].args.String("a"), rec.list[1].args.String("b"); a != "one" || b != "two" {
		t.Fatalf("explicit bound a=%q b=%q", a, b)
	}
}

func TestCallbackDataResolvesWhole(t *testing.T) {
	rec := &calls{}
	r := newRouter(t, Options{},
		recording(rec, commands.NewBase("buy", ""), nil),
		recording(rec, commands.NewBase("order", "").WithAliases("buy now"), nil),
	)
	cb := &tele.Update{ID: 1, Callback: &tele.Callback{
		Data:    "buy now",
		Sender:  &tele.User{ID: 7},
		Message: &tele.Message{Chat: &tele.Chat{ID: 100}},
	}}
	if err := r.Route(context.Background(), cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if got := rec.names(); len(got) != 1 || got[0] != "order" {
		t.Fatalf("invoked = %v, want [order]", got)
	}
	if raw := rec.list[0].args.Raw(); !raw.Empty() {
		t.Fatalf("plain callback carried args %+v", raw)
	}
}

func TestUnknownExplicitCommand(t *testing.T) {
	r := newRouter(t, Options{})
	err := r.Route(context.Background(), commandMessage(1, "/missing"))
	var nf *telegram.CommandNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected CommandNotFoundError, got %v", err)
	}
}
