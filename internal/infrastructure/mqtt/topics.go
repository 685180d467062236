package mqtt

import "fmt"

// Topic roots. The gateway owns tion/gateway/*; tiond publishes under
// tion/device/*, tion/scenario/* and tion/system/*.
const (
	TopicPrefix        = "tion"
	TopicPrefixGateway = "tion/gateway"
	TopicPrefixSystem  = "tion/system"
)

// Topics provides builders for tiond MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.GatewayRequest("AA:BB:CC:DD:EE:01")
//	// Returns: "tion/gateway/request/AA:BB:CC:DD:EE:01"
type Topics struct{}

// GatewayRequest returns the topic a device operation is sent on.
//
// Example: tion/gateway/request/AA:BB:CC:DD:EE:01
func (Topics) GatewayRequest(address string) string {
	return fmt.Sprintf("%s/request/%s", TopicPrefixGateway, address)
}

// GatewayResponse returns the topic the gateway answers a request on.
//
// Example: tion/gateway/response/6f1c0c52-...
func (Topics) GatewayResponse(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefixGateway, requestID)
}

// AllGatewayResponses matches every gateway response.
//
// Pattern: tion/gateway/response/+
func (Topics) AllGatewayResponses() string {
	return fmt.Sprintf("%s/response/+", TopicPrefixGateway)
}

// GatewayStatus is the gateway's retained online/offline topic.
//
// Example: tion/gateway/status
func (Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixGateway)
}

// DeviceState returns the retained status topic for a device.
//
// Example: tion/device/AA:BB:CC:DD:EE:01/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// AllDeviceStates matches every device status topic.
//
// Pattern: tion/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// ScenarioExecuted returns the event topic for a scenario run.
//
// Example: tion/scenario/42/executed
func (Topics) ScenarioExecuted(scenarioID int64) string {
	return fmt.Sprintf("%s/scenario/%d/executed", TopicPrefix, scenarioID)
}

// SystemStatus returns tiond's own retained status topic.
//
// Example: tion/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
