// Package cmd implements the command-line interface for whenfree.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing schedule and availability tools
//   - link: Link a Google account via OAuth and sync its calendars
//   - unlink: Remove a linked account
//   - schedule: Print the merged schedule for a date range
//   - free: Find free time slots of a given duration
package cmd
