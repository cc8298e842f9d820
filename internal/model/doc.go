// Package model provides the domain types shared by every fitsync package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - IDs are opaque strings (UUIDv7 when produced by the store)
//   - Calendar dates (Session.Date) carry no meaningful time component
//   - All JSON tags use snake_case, matching the backend column names
package model
