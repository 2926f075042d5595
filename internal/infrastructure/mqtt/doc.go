// Package mqtt connects nativehost to an MQTT broker so build events can be
// mirrored to remote dashboards and kill requests can arrive from them.
//
// The client handles auto-reconnect with backoff, restores subscriptions
// after a reconnect, and keeps a retained status on nativehost/system/status
// (the broker's Last Will flips it to offline on a crash).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.ProcessEvent("4242", "stdout")
//	err = client.PublishDefault(topic, payload)
//
// Tests that need a broker are behind the "integration" build tag.
package mqtt
