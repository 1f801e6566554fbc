// Package types holds small value types shared by the tool, health and
// serve packages.
package types
