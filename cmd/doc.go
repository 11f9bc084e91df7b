// Package cmd implements the command-line interface of dSock. It can run a
// server, send requests to it and find servers on the local network.
//
// The package is organized into several subpackages:
//
//   - serve: Starts an object or raw server, optionally discoverable and with a metrics endpoint
//   - call: Connects to a server, sends requests and prints the replies
//   - discover: Sends a discovery request and lists the servers that answered
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dsock -help for a list of all commands.
package cmd
