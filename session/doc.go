// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// the runner and flows never depend on concrete storage.
//
// Sessions hold conversation history and the last proverb snapshot a run
// published. They are process local, like the proverb list itself.
package session
