package api_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-mq/api"
)

func TestErrorSentinelMatching(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := api.NewError(api.ErrCodeConnect, "connect 127.0.0.1:9001").WithCause(cause)

	if !errors.Is(err, api.ErrConnectFailed) {
		t.Errorf("structured error does not match its sentinel: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("structured error does not match its cause: %v", err)
	}
	if errors.Is(err, api.ErrBindFailed) {
		t.Errorf("structured error matches unrelated sentinel: %v", err)
	}
}

func TestErrorContextRendering(t *testing.T) {
	err := api.NewError(api.ErrCodeBind, "bind :70000").WithContext("port", 70000)
	if err.Context["port"] != 70000 {
		t.Errorf("context not recorded: %+v", err.Context)
	}
	msg := err.Error()
	if msg == "" || msg == "bind :70000" {
		t.Errorf("context missing from rendered error: %q", msg)
	}
}

func TestEnumStrings(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{api.StateConnecting.String(), "connecting"},
		{api.StateConnected.String(), "connected"},
		{api.StateClosed.String(), "closed"},
		{api.MsgNone.String(), "none"},
		{api.MsgBuffer.String(), "buffer"},
		{api.MsgFD.String(), "fd"},
		{api.EventSent.String(), "sent"},
		{api.EventReceived.String(), "received"},
		{api.EventClosed.String(), "closed"},
		{api.ConnState(99).String(), "unknown"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("String() = %q, want %q", c.got, c.want)
		}
	}
}
