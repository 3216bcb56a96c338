// Package api is the JSON HTTP surface over the planning and archive
// services. Handlers decode, delegate, encode; every permission and lifecycle
// rule lives in the services, and service errors map onto HTTP status codes
// in exactly one place.
package api
