// Package hal defines the contract between the transfer coordination core
// and the event-processing engine that performs the actual USB I/O.
//
// An [Engine] owns transfer descriptors while they are submitted: it is
// the sole writer of a descriptor's Status and ActualLength fields from
// submission until it invokes the descriptor's completion callback. The
// callback may run on any thread the engine chooses.
//
// Engine implementations live in subpackages: usbfs (Linux usbdevfs
// backend) and mem (scripted in-memory backend for tests and examples).
package hal
