// Package types defines the small set of types shared by every layer of the
// page heap and by its callers: request flags, typed errors with stable
// categories, and default limits.
//
// Design goals:
//   - Callers branch on ErrKind, never on error text.
//   - Programmer errors (bad orders, corrupted bookkeeping) panic; runtime
//     conditions (out of memory, rejected ownership transfer) are returned.
//
// This package has no dependencies beyond the standard library.
package types
