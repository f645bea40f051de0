package tasks

// TaskSchedulerInterface defines the interface for background task
// scheduling. Used by the main application and the API to enqueue work and
// control the worker pool.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
