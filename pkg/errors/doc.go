// Package errors provides standardized error definitions for supapool.
// All error definitions are centralized here to ensure consistency across
// the pool core and the serving layer.
package errors
