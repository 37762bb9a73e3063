// Package database provides database connection management for the broker call tracker.
//
// This package includes:
//   - Database connection management using GORM and PostgreSQL
//   - Schema initialisation for users, calls, notifications and revoked tokens
//   - Typed errors shared by the repositories
//
// Data Models:
//
//	All data models (User, Call, Notification, BlacklistedToken) are defined in the models_pkg
//	package so the repository sub-packages can import them without cycles.
package database

import (
	models "broker-calls/database/models_pkg"
)

// Core data models - type aliases so callers can stay on the database package
type User = models.User
type Call = models.Call
type CallView = models.CallView
type Creator = models.Creator
type Notification = models.Notification
type BlacklistedToken = models.BlacklistedToken
