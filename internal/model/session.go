package model

import "time"

// SessionStatus enumerates the lifecycle states of a class session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// ClassType describes a kind of class offered by the studio, e.g.
// "Vinyasa Flow" or "Reformer Pilates".
//
// Fields:
//  ID        – primary key identifier.
//  Name      – unique class name.
//  CreatedAt – timestamp of creation.
type ClassType struct {
	ID        uint64    // class_types.id
	Name      string    // class_types.name
	CreatedAt time.Time // class_types.created_at
}

// Instructor is a teacher who leads sessions.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – instructor display name.
//  CreatedAt – timestamp of creation.
type Instructor struct {
	ID        uint64    // instructors.id
	Name      string    // instructors.name
	CreatedAt time.Time // instructors.created_at
}

// ClassSession is a scheduled occurrence of a class with a fixed
// number of seats.  Once created a session is immutable except for
// its status and its reservation set; occupancy is derived from
// active reservations, never stored.
//
// Fields:
//  ID             – primary key identifier.
//  ClassTypeID    – the class being taught.
//  InstructorID   – who teaches it.
//  StartsAt       – when the session begins (UTC).
//  EndsAt         – when the session ends (UTC).
//  Capacity       – maximum number of active reservations, > 0.
//  Status         – SCHEDULED or CANCELLED.
//  ClassName      – joined class_types.name, populated on reads.
//  InstructorName – joined instructors.name, populated on reads.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type ClassSession struct {
	ID             uint64        // class_sessions.id
	ClassTypeID    uint64        // class_sessions.class_type_id
	InstructorID   uint64        // class_sessions.instructor_id
	StartsAt       time.Time     // class_sessions.starts_at
	EndsAt         time.Time     // class_sessions.ends_at
	Capacity       int           // class_sessions.capacity
	Status         SessionStatus // class_sessions.status
	ClassName      string        // class_types.name (join)
	InstructorName string        // instructors.name (join)
	CreatedAt      time.Time     // class_sessions.created_at
	UpdatedAt      time.Time     // class_sessions.updated_at
}
