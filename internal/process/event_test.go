package process

import "testing"

func intPtr(v int) *int { return &v }

func TestEvent_WireStrings(t *testing.T) {
	tests := []struct {
		name       string
		ev         Event
		wantCode   string
		wantSignal string
	}{
		{name: "unreported defaults to zero", ev: Event{Kind: KindExit}, wantCode: "0", wantSignal: "0"},
		{name: "exit code", ev: Event{Kind: KindExit, Code: intPtr(1)}, wantCode: "1", wantSignal: "0"},
		{name: "signal", ev: Event{Kind: KindExit, Signal: intPtr(15)}, wantCode: "0", wantSignal: "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.CodeString(); got != tt.wantCode {
				t.Errorf("CodeString() = %q, want %q", got, tt.wantCode)
			}
			if got := tt.ev.SignalString(); got != tt.wantSignal {
				t.Errorf("SignalString() = %q, want %q", got, tt.wantSignal)
			}
		})
	}
}

func TestEvent_Payload(t *testing.T) {
	out := Event{PID: "12", Kind: KindStdout, Data: []byte("BUILD SUCCESSFUL\n")}.Payload()
	if out["pid"] != "12" || out["data"] != "BUILD SUCCESSFUL\n" {
		t.Errorf("output Payload() = %v", out)
	}
	if _, ok := out["code"]; ok {
		t.Error("output Payload() has code key")
	}

	exit := Event{PID: "12", Kind: KindExit, Code: intPtr(2)}.Payload()
	if exit["code"] != "2" || exit["signal"] != "0" || exit["pid"] != "12" {
		t.Errorf("exit Payload() = %v", exit)
	}
}

func TestKind_Channel(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindStdout, "child_process.stdout"},
		{KindStderr, "child_process.stderr"},
		{KindExit, "child_process.exit"},
	}
	for _, tt := range tests {
		if got := tt.kind.Channel(); got != tt.want {
			t.Errorf("%s.Channel() = %q, want %q", tt.kind, got, tt.want)
		}
	}
	if got := len(Channels()); got != 3 {
		t.Errorf("len(Channels()) = %d, want 3", got)
	}
}

func TestEvent_IsTerminal(t *testing.T) {
	if (Event{Kind: KindStdout}).IsTerminal() {
		t.Error("stdout IsTerminal() = true")
	}
	if !(Event{Kind: KindExit}).IsTerminal() {
		t.Error("exit IsTerminal() = false")
	}
}

func TestSinkFunc(t *testing.T) {
	var got Event
	var sink Sink = SinkFunc(func(ev Event) { got = ev })
	sink.Notify(Event{PID: "1", Kind: KindStderr})
	if got.PID != "1" || got.Kind != KindStderr {
		t.Errorf("SinkFunc received %+v", got)
	}
}
