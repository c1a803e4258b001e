package update

import (
	"errors"
	"testing"
)

func TestCommandRestarter(t *testing.T) {
	var gotName string
	var gotArgs []string
	quits := 0
	r := &CommandRestarter{
		Command: "msiexec /i",
		Quit:    func() { quits++ },
		start: func(name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		},
	}

	if err := r.Restart(Info{Version: "v1.1.0", Path: `C:\updates\kiosk.msi`}); err != nil {
		t.Fatal(err)
	}
	if gotName != "msiexec" || len(gotArgs) != 2 || gotArgs[1] != `C:\updates\kiosk.msi` {
		t.Errorf("launched %q %v", gotName, gotArgs)
	}
	if quits != 1 {
		t.Errorf("quit called %d times", quits)
	}
}

func TestCommandRestarterQuitsOnFailure(t *testing.T) {
	quits := 0
	r := &CommandRestarter{
		Command: "installer",
		Quit:    func() { quits++ },
		start:   func(string, ...string) error { return errors.New("not found") },
	}
	if err := r.Restart(Info{Path: "/p"}); err == nil {
		t.Fatal("expected launch error")
	}
	if quits != 1 {
		t.Fatal("restart must quit even when the installer fails")
	}
}

func TestCommandRestarterWithoutCommand(t *testing.T) {
	quits := 0
	r := &CommandRestarter{Quit: func() { quits++ }}
	if err := r.Restart(Info{}); err != nil {
		t.Fatal(err)
	}
	if quits != 1 {
		t.Fatal("quit not called")
	}
}
