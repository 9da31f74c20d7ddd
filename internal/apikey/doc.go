// Package apikey stores the opaque keys that gate the forecast endpoint.
//
// Keys are issued out of band with cmd/manageapi. Every successful check
// records the access time.
package apikey
