// Package daemon hosts the long-running process: single-instance locking,
// workflow lifecycle, and the token-authenticated HTTP API consumed by the
// dochub CLI.
package daemon
