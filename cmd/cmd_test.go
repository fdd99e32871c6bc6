package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trs80term/pkg/config"
	"trs80term/pkg/history"
	"trs80term/pkg/serial"
)

// execute runs the root command with args and returns what it printed.
// Command flags are package globals, so they are reset first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.SettingsEnv, "")

	settingsPath = ""
	profileRetry = 0
	profileRecord = ""
	profileFormat = ""
	profileDescription = ""
	listDetails = false
	listFormat = "table"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func stubPorts(t *testing.T, ports []serial.PortInfo, err error) {
	t.Helper()
	saved := portLister
	portLister = func() ([]serial.PortInfo, error) { return ports, err }
	t.Cleanup(func() { portLister = saved })
}

// TestRootCommand tests the root command
func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "trs80term" {
		t.Errorf("rootCmd.Use = %s, want trs80term", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("rootCmd.Short should not be empty")
	}

	// Check that subcommands are registered
	for _, expected := range []string{"list", "config", "connect", "replay"} {
		if cmd, _, err := rootCmd.Find([]string{expected}); err != nil || cmd == rootCmd {
			t.Errorf("Expected subcommand '%s' not found", expected)
		}
	}
}

func TestConfigCommand_Subcommands(t *testing.T) {
	usage := configCmd.UsageString()
	for _, expected := range []string{"save", "load", "list", "delete", "show", "export", "import"} {
		if !strings.Contains(usage, expected) {
			t.Errorf("config usage missing '%s':\n%s", expected, usage)
		}
	}
}

func TestConfigCommand_ProfileLifecycle(t *testing.T) {
	dir := t.TempDir()
	exported := filepath.Join(t.TempDir(), "den.yaml")

	out, err := execute(t, "config", "save", "den", "localhost:9000",
		"--retry", "3", "-d", "Den machine", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config save error = %v", err)
	}
	for _, want := range []string{"Profile 'den' saved", "ws://localhost:9000/ws", "Retries: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("save output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "config", "list", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config list error = %v", err)
	}
	if !strings.Contains(out, "Found 1 saved profile(s)") || !strings.Contains(out, "den") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "config", "show", "den", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"Profile: den", "Den machine", "ws://localhost:9000/ws", "Retries:"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "config", "save", "den", "localhost:9001", "--retry", "3", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config save over existing error = %v", err)
	}
	if !strings.Contains(out, "Profile 'den' updated") {
		t.Errorf("second save output = %q", out)
	}

	if _, err := execute(t, "config", "export", "den", exported, "--profile-dir", dir); err != nil {
		t.Fatalf("config export error = %v", err)
	}

	out, err = execute(t, "config", "rm", "den", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config rm error = %v", err)
	}
	if !strings.Contains(out, "Profile 'den' deleted") {
		t.Errorf("delete output = %q", out)
	}

	out, err = execute(t, "config", "list", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config list error = %v", err)
	}
	if !strings.Contains(out, "No saved profiles found.") {
		t.Errorf("list after delete = %q", out)
	}

	out, err = execute(t, "config", "import", exported, "--profile-dir", dir)
	if err != nil {
		t.Fatalf("config import error = %v", err)
	}
	if !strings.Contains(out, "Profile 'den' imported") {
		t.Errorf("import output = %q", out)
	}

	profile, err := config.NewFileProfileManager(dir).LoadProfile("den")
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if profile.URL != "ws://localhost:9001/ws" || profile.Retry.MaxRetries != 3 {
		t.Errorf("imported profile = %+v", profile)
	}
}

func TestConfigCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"save bad scheme", []string{"config", "save", "x", "ftp://host"}},
		{"save bad format", []string{"config", "save", "x", "localhost", "--format", "xml"}},
		{"delete missing", []string{"config", "delete", "nobody"}},
		{"show missing", []string{"config", "show", "nobody"}},
		{"load missing", []string{"config", "load", "nobody"}},
		{"import missing", []string{"config", "import", filepath.Join(dir, "none.json")}},
		{"save wrong args", []string{"config", "save", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--profile-dir", dir)
			if _, err := execute(t, args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestListPorts(t *testing.T) {
	stubPorts(t, []serial.PortInfo{
		{Name: "/dev/ttyUSB0", Description: "FT232R", VID: "0403", PID: "6001", SerialNumber: "A1"},
		{Name: "/dev/ttyS0"},
	}, nil)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"default", []string{"list"}, []string{"Found 2 serial port(s)", "  /dev/ttyUSB0", "  /dev/ttyS0"}},
		{"ports", []string{"list", "ports"}, []string{"Found 2 serial port(s)"}},
		{"details", []string{"list", "ports", "--details"}, []string{"PORT", "0403", "FT232R"}},
		{"csv", []string{"list", "ports", "--format", "csv"}, []string{"port\n/dev/ttyUSB0\n/dev/ttyS0\n"}},
		{"csv details", []string{"list", "ports", "-f", "csv", "-d"}, []string{"/dev/ttyUSB0,0403,6001,FT232R,A1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestListPorts_JSON(t *testing.T) {
	stubPorts(t, []serial.PortInfo{{Name: "/dev/ttyUSB0", VID: "0403"}}, nil)

	out, err := execute(t, "list", "ports", "--format", "json")
	if err != nil {
		t.Fatalf("list ports error = %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("output is not a JSON list of names: %v\n%s", err, out)
	}
	if len(names) != 1 || names[0] != "/dev/ttyUSB0" {
		t.Errorf("names = %v", names)
	}

	out, err = execute(t, "list", "ports", "--format", "json", "--details")
	if err != nil {
		t.Fatalf("list ports error = %v", err)
	}
	var infos []serial.PortInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("output is not a JSON list of ports: %v\n%s", err, out)
	}
	if len(infos) != 1 || infos[0].VID != "0403" {
		t.Errorf("infos = %+v", infos)
	}
}

func TestListPorts_EmptyAndErrors(t *testing.T) {
	stubPorts(t, nil, nil)
	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No serial ports found.") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "list", "--format", "xml"); err == nil {
		t.Error("unknown format should fail")
	}

	stubPorts(t, nil, errors.New("no enumerator"))
	if _, err := execute(t, "list"); err == nil {
		t.Error("enumerator failure should fail")
	}
}

func TestListMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/disks.json":
			w.Write([]byte(`["newdos.dsk","ldos.dsk"]`))
		case "/cassettes.json":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "list", "media", srv.URL)
	if err != nil {
		t.Fatalf("list media error = %v", err)
	}
	for _, want := range []string{"Disks (2)", "  ldos.dsk\n  newdos.dsk", "Cassettes (0)", "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListMedia_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := execute(t, "list", "media", srv.URL); err == nil {
		t.Error("a missing media list should fail")
	}
	if _, err := execute(t, "list", "media", "serial:///dev/ttyUSB0"); err == nil {
		t.Error("a serial server has no media lists")
	}
}

func TestReplayCommand(t *testing.T) {
	recorder := history.NewRecorder(0)
	recorder.Record([]byte(`{"Cmd":"poke","Addr":15424,"Msg":"LDOS"}`), history.DirectionInbound)
	recorder.Record([]byte(`{"Cmd":"motor","Addr":-1,"Data":1}`), history.DirectionInbound)

	path := filepath.Join(t.TempDir(), "session.json")
	if err := recorder.SaveToFile(path, history.FormatJSON); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "replay", path)
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	for _, want := range []string{"|LDOS", "CAS:*"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "replay", filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("replaying a missing file should fail")
	}
}

func TestConnectCommand_BadTarget(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "config", "save", "den", "localhost:9000", "--profile-dir", dir); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "connect", "ftp://host", "--profile-dir", dir)
	if err == nil {
		t.Fatal("connect with an unsupported scheme should fail")
	}
	for _, want := range []string{"neither a server address nor a saved profile", "den (ws://localhost:9000/ws)"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}

	_, err = execute(t, "connect", "--profile-dir", dir)
	if err == nil || !strings.Contains(err.Error(), "no server given") {
		t.Errorf("connect without target error = %v", err)
	}
}

func TestLoadSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "config", "list", "--config", path, "--profile-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("invalid settings file error = %v", err)
	}
}
