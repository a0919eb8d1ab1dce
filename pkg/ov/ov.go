package ov

import (
	"netcamera/pkg/camera"
	"netcamera/pkg/utils/ps"
	"netcamera/pkg/video"
)

type Status struct {
	Camera    camera.Status    `json:"camera"`
	Disk      *ps.Disk         `json:"disk,omitempty"`
	CPU       *ps.CPU          `json:"cpu,omitempty"`
	Memory    *ps.Memory       `json:"memory,omitempty"`
	Viewers   int              `json:"viewers"`
	Listeners int              `json:"listeners"` // notice websocket clients
	Webdav    bool             `json:"webdav"`
	Schedule  Schedule         `json:"schedule"`
	Recording *video.Recording `json:"recording,omitempty"`
}

type Capture struct {
	Path string `json:"path"`
}

type Schedule struct {
	Running  bool   `json:"running"`
	Interval string `json:"interval,omitempty"`
}

// ScheduleRequest binds the query of PUT /api/schedule, e.g. ?interval=30s.
type ScheduleRequest struct {
	Interval string `form:"interval" binding:"required"`
}
