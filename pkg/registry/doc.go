// Package registry is the read-only boundary to the account and
// assignment records: which external billing accounts exist, and which
// subject owns each resource assignment. The daily sync uses it to route
// provider cost rows to the right subject.
package registry
