package mqtt

// MQTTMiddleware defines the contract for MQTT middleware.
type MQTTMiddleware interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
	SetNext(next MQTTMiddleware)
}
