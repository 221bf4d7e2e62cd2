package mqtt

import (
	"fmt"
	"time"

	"github.com/benmeehan/geosense/pkg/mqtt"
)

// ChainedMQTTClient routes publishes through a middleware chain that ends at
// the MQTT client.
type ChainedMQTTClient struct {
	head MQTTMiddleware
}

// NewChainedMQTTClient links middlewares in order. publishTimeout bounds how
// long the final hop waits for the broker.
func NewChainedMQTTClient(mqttClient mqtt.MQTTClient, publishTimeout time.Duration, middlewares ...MQTTMiddleware) *ChainedMQTTClient {
	var next MQTTMiddleware = &directMQTTClient{mqttClient: mqttClient, timeout: publishTimeout}
	for i := len(middlewares) - 1; i >= 0; i-- {
		middlewares[i].SetNext(next)
		next = middlewares[i]
	}
	return &ChainedMQTTClient{head: next}
}

// Publish sends a message through the middleware chain.
func (c *ChainedMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	return c.head.Publish(topic, qos, retained, payload)
}

// directMQTTClient is the last hop and delegates to the MQTT client.
type directMQTTClient struct {
	mqttClient mqtt.MQTTClient
	timeout    time.Duration
}

func (d *directMQTTClient) SetNext(_ MQTTMiddleware) {}

func (d *directMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	token := d.mqttClient.Publish(topic, qos, retained, payload)
	if d.timeout > 0 {
		if !token.WaitTimeout(d.timeout) {
			return fmt.Errorf("publish to %s timed out after %s", topic, d.timeout)
		}
	} else {
		token.Wait()
	}
	return token.Error()
}
