// Package sample holds small models used by the CLI, the harness and the
// tests: a blog with posts and a counter.
package sample
