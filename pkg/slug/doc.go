// Package slug generates URL-safe identifiers from display names.
// Tenant slugs derived here double as subdomain labels, so the output
// alphabet is restricted to lowercase ASCII letters, digits, and the
// separator.
package slug
