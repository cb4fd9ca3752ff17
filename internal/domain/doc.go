// Package domain defines the core marketplace types and interfaces.
//
// This package contains concept-oriented files (role.go, profile.go, appointment.go, etc.)
// with shared types and cross-cutting interfaces. No implementation code beyond small
// invariants on the types themselves. Ports for external systems (auth provider,
// payment gateway, text generation, notifications) live here so adapters and the
// app layer never import each other.
package domain
