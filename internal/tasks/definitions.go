package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Register provisioning tasks
	RegisterHandler(ProvisionOrderTask.TaskID(), ProvisionOrderTask.HandleExecution)

	// Register maintenance tasks
	RegisterHandler(CleanupSessionsTask.TaskID(), CleanupSessionsTask.HandleExecution)
}
