package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

// Clipboard is the text clipboard the watcher polls.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// WriteMethod reports how a write reached the clipboard.
type WriteMethod uint8

const (
	WriteSystem WriteMethod = iota
	WriteOSC52
)

// SystemClipboard uses the OS clipboard helpers (pbcopy, xclip, wl-copy...).
// Writes fall back to an OSC52 escape sequence on the controlling terminal,
// which is what works over SSH. Reads have no such fallback.
type SystemClipboard struct {
	readAll   func() (string, error)
	writeAll  func(string) error
	writeOSC  func(string) error
	LastWrite WriteMethod
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{
		readAll:  clipboard.ReadAll,
		writeAll: clipboard.WriteAll,
		writeOSC: writeOSC52Clipboard,
	}
}

func (c *SystemClipboard) Read() (string, error) {
	if clipboard.Unsupported {
		return "", errors.New("no clipboard helper found (install xclip, xsel or wl-clipboard)")
	}
	text, err := c.readAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %s", humanizeClipboardError(err))
	}
	return text, nil
}

func (c *SystemClipboard) Write(text string) error {
	err := c.writeAll(text)
	if err == nil {
		c.LastWrite = WriteSystem
		return nil
	}
	if oscErr := c.writeOSC(text); oscErr != nil {
		return combineClipboardErrors(err, oscErr)
	}
	c.LastWrite = WriteOSC52
	return nil
}

func writeOSC52Clipboard(text string) error {
	if !shouldAttemptOSC52() {
		return errors.New("OSC52 unavailable for this terminal")
	}
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()
	return writeOSC52Sequence(tty, text)
}

func writeOSC52Sequence(w io.Writer, text string) error {
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(strings.ToLower(os.Getenv("TERM")), "screen"):
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(w)
	return err
}

func shouldAttemptOSC52() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PAPERCLIP_DISABLE_OSC52"))) {
	case "1", "true", "yes", "on":
		return false
	}
	termName := strings.TrimSpace(os.Getenv("TERM"))
	return termName != "" && !strings.EqualFold(termName, "dumb")
}

func combineClipboardErrors(systemErr, oscErr error) error {
	if missingDisplay() {
		return fmt.Errorf("no GUI clipboard available (DISPLAY/WAYLAND_DISPLAY unset); OSC52 fallback failed: %s", humanizeClipboardError(oscErr))
	}
	return fmt.Errorf("system clipboard failed: %s; OSC52 fallback failed: %s", humanizeClipboardError(systemErr), humanizeClipboardError(oscErr))
}

func humanizeClipboardError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "exit status 1" {
		if missingDisplay() {
			return "no GUI clipboard available (DISPLAY/WAYLAND_DISPLAY unset)"
		}
		return "clipboard helper exited with status 1"
	}
	return msg
}

func missingDisplay() bool {
	return strings.TrimSpace(os.Getenv("DISPLAY")) == "" && strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) == ""
}
