// Package cmd implements the cobra command tree for the bridgectl CLI,
// including subcommands for authentication, bridge client registration,
// card registry management, the background daemon, configuration and
// shell completion.
package cmd
