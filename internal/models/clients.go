// Package models defines the shared data types exchanged between the engine,
// the control API, and the CLI.
package models

// ClientEntry is one row of the client directory: a process attached to the
// bus and the 2-channel slot it is routed to. The first three fields come
// straight from the registry snapshot; the identity fields are filled in by
// the control plane on demand.
type ClientEntry struct {
	PID           int32  `json:"pid"`
	ClientID      uint32 `json:"client_id"`
	ChannelOffset int    `json:"channel_offset"`

	ProcessName     string `json:"process_name,omitempty"`
	ResponsiblePID  int32  `json:"responsible_pid,omitempty"`
	ResponsibleName string `json:"responsible_name,omitempty"`
}

// Directory is a point-in-time snapshot of the client registry, as published
// on the event bus and streamed to SSE subscribers.
type Directory struct {
	Clients []ClientEntry `json:"clients"`
}

// RoutingUpdate is a routing request as received by the control API.
// PID -1 broadcasts the offset to every active client.
type RoutingUpdate struct {
	PID           int32 `json:"pid"`
	ChannelOffset int   `json:"channel_offset"`
}

// BroadcastPID targets every active registry slot in a RoutingUpdate.
const BroadcastPID int32 = -1

// RoutingResult reports how many registry slots a routing update touched.
type RoutingResult struct {
	Updated int `json:"updated"`
}

// Info describes the running daemon and the bus geometry for GET /api/info.
type Info struct {
	Version       string  `json:"version"`
	SampleRate    float64 `json:"sample_rate"`
	BusChannels   int     `json:"bus_channels"`
	RingFrames    int     `json:"ring_frames"`
	FrameSize     int     `json:"buffer_frame_size"`
	ActiveClients int     `json:"active_clients"`
	Mock          bool    `json:"mock"`
}
