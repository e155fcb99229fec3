// Package environment carries the application environment through request
// contexts. The tenant resolver uses it to disable the query-parameter
// resolution strategy everywhere except development.
package environment
