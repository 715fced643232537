// Package event multiplexes target events to typed subscribers.
//
// Delivery is synchronous on the goroutine that publishes — for a debug
// session, the engine's callback goroutine. Subscribers for a specific event
// kind run before catch-all subscribers, and within each list in
// registration order. Handler panics are captured and reported to the bus's
// panic handler; they never propagate to the publisher.
package event
