// Command dochub is the CLI for the dochub task daemon. It submits docker
// and ollama operations to the queue, inspects task state and logs, and
// manages queue dispatch over the daemon's HTTP API.
package main
