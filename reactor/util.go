package reactor

// Yield suspends the calling Task for exactly one reactor iteration,
// re-entering the ready queue immediately rather than waiting on any
// kernel operation. Grounded in original_source/src/util.rs's Delay
// future, which resolves on its first poll after being re-woken.
func Yield(t *Task) {
	t.reactor.ready.push(t)
	t.park()
}

// SpawnTask spawns a new Task on t's Reactor at the given priority,
// for use from within a running Task body. Grounded in
// original_source/src/util.rs's spawn_task, which reaches the current
// reactor through the calling task's waker; here the Task carries its
// Reactor directly.
func SpawnTask(t *Task, priority Priority, body func(*Task) error) *Task {
	return t.reactor.Spawn(priority, body)
}
