// Package access decides whether a role-restricted page may be shown.
//
// A Resolver is created per mount (one per guarded HTTP request). It is fed
// session and role observations through Update and answers with at most one
// navigation action: render (Authorized), or redirect to the login page or to
// the dashboard of the role the user actually holds. While the role lookup is
// still in flight the resolver holds for a bounded grace period instead of
// redirecting against a value that simply has not loaded yet.
package access
