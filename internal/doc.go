// Package internal holds helpers private to the goSession module.
//
//   - audit: asynchronous security event dispatch and sinks
//   - rate: Redis fixed-window throttling of failed logins for the reference backend
package internal
