// Package connection tracks the hub's connected clients and routes between
// them.
//
// The Manager indexes connections by type and socket id (and devices by
// account id) and holds the subscription table through which controllers
// receive a device's commands and messages. Each Connection owns its
// cognitive sessions and, for devices, the skills controller.
package connection
