package domain

import "time"

type User struct {
	UserID       string
	Email        string
	Phone        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

type CylinderStatus string

const (
	CylinderAvailable   CylinderStatus = "AVAILABLE"
	CylinderReserved    CylinderStatus = "RESERVED"
	CylinderInUse       CylinderStatus = "IN_USE"
	CylinderMaintenance CylinderStatus = "MAINTENANCE"
)

type Cylinder struct {
	CylinderID string
	Size       string
	Status     CylinderStatus
	UpdatedAt  time.Time
}
