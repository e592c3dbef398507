package cron

import "context"

// Job is one scheduled task run by the worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker executes each cycle, in registration
// order.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
