// Package mqtt provides the broker connection for tiond.
//
// tiond uses MQTT twice: as the transport to the BLE gateway
// (request/response under tion/gateway/) and as the outbound bus for
// retained device status and scenario events.
//
// The client enables paho's auto-reconnect, restores tracked
// subscriptions on every reconnect and keeps a retained
// tion/system/status message current, with a last will for crashes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllGatewayResponses(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
