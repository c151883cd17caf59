package interfaces

import "time"

// JobStatus describes a scheduled job's current state
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// SchedulerService runs registered maintenance jobs on cron schedules
type SchedulerService interface {
	RegisterJob(name, schedule, description string, handler func() error) error
	Start() error
	Stop() error
	TriggerJob(name string) error
	GetAllJobStatuses() map[string]*JobStatus
	IsRunning() bool
}
