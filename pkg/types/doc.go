// Package types defines the book record model, the Store interface that
// persistence backends implement, configuration, and the standard error
// values shared by the holdwatch packages.
package types
