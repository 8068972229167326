// Package messaging provides a broker-agnostic API for publishing and
// consuming trigger events.
//
// Business code depends on the interfaces in this package; NATS and Kafka
// drivers are selected by name through NewFromDriver.
package messaging
