// Package audit records who did what to the configuration store. Entries
// are published to NATS for asynchronous consumption and mirrored to a
// plain-text trail file; when the broker is unreachable the trail file is
// written synchronously so no action goes unrecorded.
package audit

import (
	"context"
	"fmt"
	"time"
)

// Audit topic constants.
const (
	TopicUserRegistered   = "configsync.audit.user.registered"
	TopicUserLoggedIn     = "configsync.audit.user.logged_in"
	TopicUserLoggedOut    = "configsync.audit.user.logged_out"
	TopicConfigUpdated    = "configsync.audit.config.updated"
	TopicConfigRetrieved  = "configsync.audit.config.retrieved"
	TopicConfigDeleted    = "configsync.audit.config.deleted"
	TopicConfigCompared   = "configsync.audit.config.compared"
	TopicConfigRolledBack = "configsync.audit.config.rolled_back"
)

// Entry is a single audit record.
type Entry struct {
	Topic     string    `json:"topic"`
	Time      time.Time `json:"time"`
	UserEmail string    `json:"user_email"`
	UserRole  string    `json:"user_role,omitempty"`
	Service   string    `json:"service,omitempty"`
	VersionA  int64     `json:"version_a,omitempty"`
	VersionB  int64     `json:"version_b,omitempty"`
}

// Entry constructors, one per audited action.

func UserRegistered(email, role string) Entry {
	return Entry{Topic: TopicUserRegistered, UserEmail: email, UserRole: role}
}

func UserLoggedIn(email string) Entry {
	return Entry{Topic: TopicUserLoggedIn, UserEmail: email}
}

func UserLoggedOut(email string) Entry {
	return Entry{Topic: TopicUserLoggedOut, UserEmail: email}
}

func ConfigUpdated(email, service string) Entry {
	return Entry{Topic: TopicConfigUpdated, UserEmail: email, Service: service}
}

func ConfigRetrieved(email, service string) Entry {
	return Entry{Topic: TopicConfigRetrieved, UserEmail: email, Service: service}
}

func ConfigDeleted(email, service string) Entry {
	return Entry{Topic: TopicConfigDeleted, UserEmail: email, Service: service}
}

func ConfigCompared(email, service string, a, b int64) Entry {
	return Entry{Topic: TopicConfigCompared, UserEmail: email, Service: service, VersionA: a, VersionB: b}
}

func ConfigRolledBack(email, service string, target int64) Entry {
	return Entry{Topic: TopicConfigRolledBack, UserEmail: email, Service: service, VersionA: target}
}

// Line renders the entry in the trail file's human-readable format.
func (e Entry) Line() string {
	ts := e.Time.Format("2006-01-02 15:04:05")
	switch e.Topic {
	case TopicUserRegistered:
		return fmt.Sprintf("[%s] New user registered with email '%s' with %s privileges", ts, e.UserEmail, e.UserRole)
	case TopicUserLoggedIn:
		return fmt.Sprintf("[%s] User '%s' logged in", ts, e.UserEmail)
	case TopicUserLoggedOut:
		return fmt.Sprintf("[%s] User '%s' logged out", ts, e.UserEmail)
	case TopicConfigUpdated:
		return fmt.Sprintf("[%s] User '%s' updated config for service '%s'", ts, e.UserEmail, e.Service)
	case TopicConfigRetrieved:
		return fmt.Sprintf("[%s] User '%s' retrieved config for service '%s'", ts, e.UserEmail, e.Service)
	case TopicConfigDeleted:
		return fmt.Sprintf("[%s] User '%s' deleted config for service '%s'", ts, e.UserEmail, e.Service)
	case TopicConfigCompared:
		return fmt.Sprintf("[%s] User '%s' compared versions %d and %d for service '%s'", ts, e.UserEmail, e.VersionA, e.VersionB, e.Service)
	case TopicConfigRolledBack:
		return fmt.Sprintf("[%s] User '%s' rolled back config for service '%s' to version %d", ts, e.UserEmail, e.Service, e.VersionA)
	default:
		return fmt.Sprintf("[%s] User '%s' %s", ts, e.UserEmail, e.Topic)
	}
}

// Publisher is the interface for emitting audit entries.
type Publisher interface {
	Publish(ctx context.Context, topic string, entry Entry) error
	Close() error
}
