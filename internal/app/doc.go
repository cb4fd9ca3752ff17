// Package app provides the application service layer.
//
// Orchestrates the marketplace use cases: sign up and onboarding, role lookup,
// booking, messaging, payments and memberships, AI matching, reminders and
// admin tooling. Sits between HTTP handlers and domain repositories and
// depends on domain interfaces, not concrete implementations.
package app
