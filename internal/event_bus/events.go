package event_bus

// RecurringRunCompleted is published after every scheduler batch; the payload is a scheduler.RunReport.
const RecurringRunCompleted EventType = "recurring.run.completed"
