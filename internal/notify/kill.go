package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/nativehost/internal/infrastructure/mqtt"
	"github.com/nerrad567/nativehost/internal/process"
)

// ErrBadKillRequest is returned for kill messages without a usable pid.
var ErrBadKillRequest = errors.New("notify: kill request needs a pid")

// Killer is implemented by *process.Supervisor.
type Killer interface {
	Kill(id process.ID) error
}

// Subscriber is implemented by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// KillHandler returns an MQTT handler that kills the build named in the
// message. The body is either {"pid":"4242"} or the bare pid.
func KillHandler(k Killer) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		pid := killTarget(payload)
		if pid == "" {
			return ErrBadKillRequest
		}
		if err := k.Kill(process.ID(pid)); err != nil {
			return fmt.Errorf("killing %s: %w", pid, err)
		}
		return nil
	}
}

func killTarget(payload []byte) string {
	if gjson.ValidBytes(payload) {
		if res := gjson.GetBytes(payload, "pid"); res.Exists() {
			return strings.TrimSpace(res.String())
		}
		// A bare JSON number or string is accepted too.
		res := gjson.ParseBytes(payload)
		if res.Type == gjson.Number || res.Type == gjson.String {
			return strings.TrimSpace(res.String())
		}
		return ""
	}
	return strings.TrimSpace(string(payload))
}

// ListenForKills subscribes k to the kill command topic.
func ListenForKills(sub Subscriber, k Killer) error {
	return sub.Subscribe(mqtt.Topics{}.KillCommand(), 1, KillHandler(k))
}
