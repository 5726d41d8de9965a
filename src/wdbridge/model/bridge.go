// Package model holds the repository layer representation of bridged sessions.
package model

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
)

// Session is the repository layer model for a bridged driver session.
type Session struct {
	UUID       uuid.UUID
	Connection uuid.UUID
	Driver     string
	StartedAt  time.Time
	Lifecycle  entity.DriverSession
}
