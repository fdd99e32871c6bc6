package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"trs80term/pkg/connection"
	"trs80term/pkg/keymap"
	"trs80term/pkg/protocol"
)

// recordingSender keeps every command it is asked to send.
type recordingSender struct {
	sent []protocol.Command
	err  error
}

func (r *recordingSender) Send(cmd protocol.Command) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func TestEncoder_SimpleCommands(t *testing.T) {
	sender := &recordingSender{}
	e := NewEncoder(sender)

	if err := e.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := e.Trace(); err != nil {
		t.Fatal(err)
	}

	want := []protocol.Command{protocol.Boot{}, protocol.Reset{}, protocol.Trace{}}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent %#v, want %#v", sender.sent, want)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		wantErr bool
	}{
		{"1A2B", 0x1A2B, false},
		{"1a2b", 0x1A2B, false},
		{"0x4000", 0x4000, false},
		{"$3C00", 0x3C00, false},
		{"  ffff ", 0xFFFF, false},
		{"0", 0, false},
		{"zz", 0, true},
		{"", 0, true},
		{"0x", 0, true},
		{"10000", 0, true},
		{"-1", 0, true},
		{"12 34", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseAddress(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("error %v does not wrap ErrInvalidAddress", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %#x, want %#x", tt.text, got, tt.want)
			}
		})
	}
}

func TestEncoder_AddBreakpoint(t *testing.T) {
	sender := &recordingSender{}
	e := NewEncoder(sender)

	if err := e.AddBreakpoint("1A2B"); err != nil {
		t.Fatalf("AddBreakpoint() error = %v", err)
	}
	if err := e.AddBreakpoint("zz"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("AddBreakpoint(zz) error = %v, want ErrInvalidAddress", err)
	}

	want := []protocol.Command{protocol.AddBreakpoint{Addr: 6699}}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent %#v, want %#v", sender.sent, want)
	}
}

func TestEncoder_Media(t *testing.T) {
	sender := &recordingSender{}
	e := NewEncoder(sender)

	steps := []func() error{
		func() error { return e.SetDisk(0, "ldos.dsk") },
		func() error { return e.SetDisk(1, "") },
		func() error { return e.SetDisk(1, "(none)") },
		func() error { return e.SetCassette("-") },
		func() error { return e.SetCassette("galaxy.cas") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}

	want := []protocol.Command{
		protocol.SetDisk0{Filename: "ldos.dsk"},
		protocol.SetDisk1{Filename: ""},
		protocol.SetDisk1{Filename: ""},
		protocol.SetCassette{Filename: ""},
		protocol.SetCassette{Filename: "galaxy.cas"},
	}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent %#v, want %#v", sender.sent, want)
	}

	if err := e.SetDisk(2, "x.dsk"); !errors.Is(err, ErrInvalidDrive) {
		t.Errorf("SetDisk(2) error = %v, want ErrInvalidDrive", err)
	}
	if len(sender.sent) != len(want) {
		t.Error("invalid drive must send nothing")
	}
}

func TestMediaSelection(t *testing.T) {
	tests := map[string]string{
		"":           Eject,
		"-":          Eject,
		"(none)":     Eject,
		"(eject)":    Eject,
		" game.cas ": "game.cas",
		"ldos.dsk":   "ldos.dsk",
	}
	for in, want := range tests {
		if got := MediaSelection(in); got != want {
			t.Errorf("MediaSelection(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEncoder_Keys(t *testing.T) {
	sender := &recordingSender{}
	e := NewEncoder(sender)

	if err := e.Tap(keymap.Token("A")); err != nil {
		t.Fatal(err)
	}
	if err := e.Press(keymap.TokenNone); err != nil {
		t.Fatal(err)
	}
	if err := e.Tap(keymap.TokenEnter); err != nil {
		t.Fatal(err)
	}

	want := []protocol.Command{
		protocol.Press{Key: "A"},
		protocol.Release{Key: "A"},
		protocol.Press{Key: "Enter"},
		protocol.Release{Key: "Enter"},
	}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent %#v, want %#v", sender.sent, want)
	}
}

func TestEncoder_SenderError(t *testing.T) {
	boom := errors.New("write failed")
	e := NewEncoder(&recordingSender{err: boom})

	if err := e.Tap(keymap.Token("a")); !errors.Is(err, boom) {
		t.Errorf("Tap() error = %v, want %v", err, boom)
	}
}

// closedTransport fails the test if anything is written to it.
type closedTransport struct {
	t *testing.T
}

func (c closedTransport) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, io.EOF
}

func (c closedTransport) Write(ctx context.Context, payload []byte) error {
	c.t.Errorf("unexpected write %s", payload)
	return nil
}

func (c closedTransport) Close() error { return nil }

func TestEncoder_SendAfterClose(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := connection.NewManager(func(ctx context.Context) (connection.Transport, error) {
		return closedTransport{t: t}, nil
	}, connection.Options{Logger: logger})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Close()
	m.Wait()

	e := NewEncoder(m)
	if err := e.Press(keymap.Token("a")); err != nil {
		t.Errorf("Press() after close error = %v, want nil", err)
	}
	if err := e.Boot(); err != nil {
		t.Errorf("Boot() after close error = %v, want nil", err)
	}
}
