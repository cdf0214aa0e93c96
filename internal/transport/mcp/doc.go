// Package mcp exposes the session service as Model Context Protocol tools
// so agents can list, create and join game sessions.
package mcp
