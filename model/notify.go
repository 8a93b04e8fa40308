package model

// Notifier receives user-visible messages: network failures and bulk
// action outcomes.
type Notifier interface {
	Success(message string)
	Error(message string, err error)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string)      {}
func (NopNotifier) Error(string, error) {}
