// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing core model objects (sessions,
// events, tool/function parts) and asserting behaviors. These helpers are
// minimal and not intended for production usage.
package testutil
