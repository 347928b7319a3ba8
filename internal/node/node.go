// Package node implements the routed peripheral nodes surrounding the
// navigation engine: the CAN motor edge, the segmentation mask producer, the
// GPS and gyro producers, and the controller-facing comm bridge. Each node is
// a goroutine consuming its router channel until a kill message arrives.
//
// The hardware drivers themselves (CAN bus, camera inference, GNSS and IMU
// chips) sit behind small source interfaces so the same nodes run against
// real devices or the simulation.
package node

import "RoverCore/internal/model"

// Sender is a node's outbound half of its router port.
type Sender interface {
	Send(model.Message) error
}
