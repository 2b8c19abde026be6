package model

import (
	"fmt"
	"time"
)

// NotificationKind names a committed transition.
type NotificationKind string

const (
	NotifySessionCreated   NotificationKind = "session.created"
	NotifySessionPublished NotificationKind = "session.published"
	NotifySessionJoined    NotificationKind = "session.joined"
	NotifySessionLeft      NotificationKind = "session.left"
	NotifySessionFull      NotificationKind = "session.full"
	NotifySessionCancelled NotificationKind = "session.cancelled"
	NotifySessionCompleted NotificationKind = "session.completed"
	NotifyRatingsUpdated   NotificationKind = "ratings.updated"
)

// Notification is dispatched after a transition commits.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	SessionID  string           `json:"session_id"`
	ActorID    string           `json:"actor_id"`
	Recipients []string         `json:"recipients"`
	At         time.Time        `json:"at"`
}

// NewNotification builds a notification whose id is stable for a given
// session version, so redelivery of the same transition can be suppressed.
func NewNotification(kind NotificationKind, s Session, actorID string, at time.Time) Notification {
	return Notification{
		ID:         fmt.Sprintf("%s:%s:%d", s.ID, kind, s.Version),
		Kind:       kind,
		SessionID:  s.ID,
		ActorID:    actorID,
		Recipients: s.ParticipantIDs(),
		At:         at,
	}
}
