package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeUpdates_Single(t *testing.T) {
	updates, err := DecodeUpdates([]byte(`{"Cmd":"poke","Addr":15360,"Msg":"AB"}`))
	if err != nil {
		t.Fatalf("DecodeUpdates() error = %v", err)
	}

	want := []Update{Poke{Addr: 15360, Data: []byte{65, 66}}}
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("DecodeUpdates() = %#v, want %#v", updates, want)
	}
}

func TestDecodeUpdates_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Update
	}{
		{"cassette motor on", `{"Cmd":"motor","Addr":-1,"Data":1}`, Motor{Drive: -1, On: true}},
		{"drive motor off", `{"Cmd":"motor","Addr":2,"Data":0}`, Motor{Drive: 2, On: false}},
		{"breakpoint", `{"Cmd":"breakpoint","Addr":1234}`, Breakpoint{Addr: 1234}},
		{"message", `{"Cmd":"message","Msg":"Trace is on"}`, Message{Text: "Trace is on"}},
		{"expanded on", `{"Cmd":"expanded","Data":4}`, Expanded{On: true}},
		{"expanded off", `{"Cmd":"expanded","Data":0}`, Expanded{On: false}},
		{"shutdown", `{"Cmd":"shutdown"}`, Shutdown{}},
		{"unknown", `{"Cmd":"teleport","Addr":1}`, Unknown{Cmd: "teleport"}},
		{"extra fields", `{"Cmd":"message","Msg":"hi","Reg":"pc"}`, Message{Text: "hi"}},
		{"high bytes", `{"Cmd":"poke","Addr":15360,"Msg":"\u0080¿ÿ"}`, Poke{Addr: 15360, Data: []byte{0x80, 0xBF, 0xFF}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates, err := DecodeUpdates([]byte(tt.payload))
			if err != nil {
				t.Fatalf("DecodeUpdates() error = %v", err)
			}
			if len(updates) != 1 || !reflect.DeepEqual(updates[0], tt.want) {
				t.Errorf("DecodeUpdates() = %#v, want [%#v]", updates, tt.want)
			}
		})
	}
}

func TestDecodeUpdates_Batch(t *testing.T) {
	payload := `[
		{"Cmd":"poke","Addr":15360,"Msg":"A"},
		{"Cmd":"expanded","Data":1},
		{"Cmd":"poke","Addr":15361,"Msg":"B"}
	]`

	updates, err := DecodeUpdates([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeUpdates() error = %v", err)
	}

	want := []Update{
		Poke{Addr: 15360, Data: []byte("A")},
		Expanded{On: true},
		Poke{Addr: 15361, Data: []byte("B")},
	}
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("DecodeUpdates() = %#v, want %#v", updates, want)
	}
}

func TestDecodeUpdates_EmptyBatch(t *testing.T) {
	updates, err := DecodeUpdates([]byte(" [] "))
	if err != nil {
		t.Fatalf("empty batch should be legal, got %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("empty batch decoded to %d updates", len(updates))
	}
}

func TestDecodeUpdates_Malformed(t *testing.T) {
	payloads := []string{
		``,
		`   `,
		`{"Cmd":"poke"`,
		`not json`,
		`42`,
		`null`,
		`{"Addr":15360}`,
		`{"Cmd":"poke","Addr":15360}`,
		`{"Cmd":"poke","Msg":"x"}`,
		`{"Cmd":"motor","Addr":-1}`,
		`{"Cmd":"breakpoint"}`,
		`{"Cmd":"message"}`,
		`{"Cmd":"expanded"}`,
		`{"Cmd":"poke","Addr":"15360","Msg":"x"}`,
		`[{"Cmd":"message","Msg":"ok"}, {"Cmd":"motor"}]`,
		`[{"Cmd":"message","Msg":"ok"}, 7]`,
		`{"Cmd":"poke","Addr":15360,"Msg":"Ł"}`,
		`{"Cmd":"poke","Addr":15360,"Msg":"ok\u2588"}`,
		`{"Cmd":"breakpoint","Addr":-1}`,
		`{"Cmd":"breakpoint","Addr":65536}`,
	}

	for _, payload := range payloads {
		_, err := DecodeUpdates([]byte(payload))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeUpdates(%q) error = %v, want ErrMalformed", payload, err)
		}
	}
}

func TestEncodeUpdate_RoundTrip(t *testing.T) {
	updates := []Update{
		Poke{Addr: 16000, Data: []byte{0, 65, 0x80, 0xFF}},
		Motor{Drive: CassetteDrive, On: true},
		Breakpoint{Addr: 0x4000},
		Message{Text: "hello"},
		Expanded{On: true},
		Shutdown{},
	}

	for _, u := range updates {
		payload, err := EncodeUpdate(u)
		if err != nil {
			t.Fatalf("EncodeUpdate(%#v) error = %v", u, err)
		}
		decoded, err := DecodeUpdates(payload)
		if err != nil {
			t.Fatalf("DecodeUpdates(%s) error = %v", payload, err)
		}
		if !reflect.DeepEqual(decoded, []Update{u}) {
			t.Errorf("round trip of %#v gave %#v", u, decoded)
		}
	}
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		command Command
		want    string
	}{
		{"boot", Boot{}, `{"Cmd":"boot"}`},
		{"reset", Reset{}, `{"Cmd":"reset"}`},
		{"trace", Trace{}, `{"Cmd":"tron"}`},
		{"breakpoint", AddBreakpoint{Addr: 0x1A2B}, `{"Cmd":"add_breakpoint","Addr":6699}`},
		{"breakpoint at zero", AddBreakpoint{Addr: 0}, `{"Cmd":"add_breakpoint","Addr":0}`},
		{"disk0", SetDisk0{Filename: "ldos.dsk"}, `{"Cmd":"set_disk0","Data":"ldos.dsk"}`},
		{"disk1 eject", SetDisk1{}, `{"Cmd":"set_disk1","Data":""}`},
		{"cassette", SetCassette{Filename: "tape.cas"}, `{"Cmd":"set_cassette","Data":"tape.cas"}`},
		{"press", Press{Key: "Enter"}, `{"Cmd":"press","Data":"Enter"}`},
		{"release", Release{Key: "a"}, `{"Cmd":"release","Data":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.command)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeCommand() = %s, want %s", got, tt.want)
			}

			decoded, err := DecodeCommand(got)
			if err != nil {
				t.Fatalf("DecodeCommand(%s) error = %v", got, err)
			}
			if decoded != tt.command {
				t.Errorf("DecodeCommand(%s) = %#v, want %#v", got, decoded, tt.command)
			}
		})
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	payloads := []string{
		`{`,
		`{"Cmd":"explode"}`,
		`{"Cmd":"press"}`,
		`{"Cmd":"add_breakpoint"}`,
	}
	for _, payload := range payloads {
		if _, err := DecodeCommand([]byte(payload)); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeCommand(%q) error = %v, want ErrMalformed", payload, err)
		}
	}
}
