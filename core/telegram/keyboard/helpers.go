package keyboard

import (
	"fmt"
	"strings"

	"github.com/m3rciful/cmdbus/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CommandBtn is an inline button that runs a command when pressed.
// Args travel in the callback data and become the command's positional arguments.
type CommandBtn struct {
	Text    string
	Command string
	Args    []string
}

// Button returns the telebot button for b. The callback data is encoded here
// rather than by telebot so its length is checked before sending.
func (b CommandBtn) Button() (tele.Btn, error) {
	data, err := callbacks.Encode(strings.TrimPrefix(b.Command, "/"), b.Args...)
	if err != nil {
		return tele.Btn{}, fmt.Errorf("keyboard: button %q: %w", b.Text, err)
	}
	return tele.Btn{Text: b.Text, Data: data}, nil
}

// CommandKeyboard builds an inline keyboard from rows of command buttons.
// It fails if any button cannot be encoded.
func CommandKeyboard(rows ...[]CommandBtn) (*tele.ReplyMarkup, error) {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btn, err := b.Button()
			if err != nil {
				return nil, err
			}
			r = append(r, *btn.Inline())
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}, nil
}

// CommandGrid lays buttons out n per row.
func CommandGrid(buttons []CommandBtn, n int) (*tele.ReplyMarkup, error) {
	return CommandKeyboard(Chunk(buttons, n)...)
}

// ReplyButtons builds a reply keyboard; pressing a button sends its text,
// which reaches commands through their aliases.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// ForceReply asks the client to answer the prompt, so the answer reaches the command
// whose reply trigger equals the prompt text.
func ForceReply(placeholder string) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true, Placeholder: placeholder}
}

// Chunk splits items into rows of at most n; n <= 1 puts each item on its own row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		rows = append(rows, items[i:min(i+n, len(items))])
	}
	return rows
}
