// Package common contains shared constants, sentinel errors and small helpers
// used across blogkeeper components.
package common

// SessionCookieName is the cookie that carries the admin session token.
const SessionCookieName = "admin-token"

// MinPasswordLength is the shortest password accepted by account operations.
const MinPasswordLength = 6
