// Package queue defines message payloads exchanged over the message broker.
package queue

// WaitlistNotifiedEvent is published when a waitlist entry is promoted
// to NOTIFIED.  It carries everything the mailer consumer needs to
// compose the accept email without querying the primary database; the
// token is embedded in the accept link.
type WaitlistNotifiedEvent struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Token     string `json:"token"`
	ClassName string `json:"class_name"`
	StartsAt  string `json:"starts_at"`
	ExpiresAt string `json:"expires_at"`
}
