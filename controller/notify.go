package controller

import "log"

// Notifier delivers user-facing notifications (toasts, tray balloons).
type Notifier interface {
	Notify(message string)
}

// LogNotifier writes notifications to the standard logger. It is used by the
// headless daemon and whenever no front end is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(message string) {
	log.Printf("Notification: %s", message)
}

// Notification texts.
const (
	MsgRunning   = "Fan control is running"
	MsgStopped   = "Fan control stopped"
	MsgRecovered = "Fan state was abnormal, recovery attempted"
	MsgTdpSet    = "TDP settings applied"
)
