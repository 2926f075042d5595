package mqtt

import "fmt"

// Topic prefixes for the nativehost hierarchy:
//
//	nativehost/process/{pid}/{stdout|stderr|exit}   relayed build events
//	nativehost/process/{pid}/lifecycle              started/exited records
//	nativehost/command/kill                         remote kill requests
//	nativehost/system/status                        online/offline (LWT)
const (
	TopicPrefix        = "nativehost"
	TopicPrefixProcess = "nativehost/process"
	TopicPrefixCommand = "nativehost/command"
	TopicPrefixSystem  = "nativehost/system"
)

// Topics provides builders for nativehost MQTT topics.
//
//	topic := mqtt.Topics{}.ProcessEvent("4242", "stdout")
//	// "nativehost/process/4242/stdout"
type Topics struct{}

// ProcessEvent returns the topic for one kind of event of a build.
func (Topics) ProcessEvent(pid, kind string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixProcess, pid, kind)
}

// ProcessLifecycle returns the topic for start and exit records of a build.
func (Topics) ProcessLifecycle(pid string) string {
	return fmt.Sprintf("%s/%s/lifecycle", TopicPrefixProcess, pid)
}

// KillCommand returns the topic remote controllers publish kill requests to.
func (Topics) KillCommand() string {
	return TopicPrefixCommand + "/kill"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllProcessEvents matches every relayed event of every build.
//
// Pattern: nativehost/process/+/+
func (Topics) AllProcessEvents() string {
	return TopicPrefixProcess + "/+/+"
}

// AllTopics matches all nativehost traffic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
